package valuation

// Career tiers
const (
	CareerUndergrad = "UGRD"
	CareerGrad      = "GRAD"
)

// Classify maps a catalog number to its career tier: 100-499 is UGRD, anything else is GRAD.
// A nil catalog number has no tier ("").
func Classify(catalogNum *int) string {
	if catalogNum == nil {
		return ""
	}
	if n := *catalogNum; n >= 100 && n <= 499 {
		return CareerUndergrad
	}
	return CareerGrad
}
