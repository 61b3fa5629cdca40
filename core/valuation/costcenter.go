package valuation

import "strings"

// UnknownCostCenter is returned when no rule matches. Downstream consumers treat it as valid but flagged.
const UnknownCostCenter = "UNKNOWN"

type (
	// CostCenterRule maps (Position, Location, Campus, AcadCareer) to an accounting key.
	// Position matches exactly, the other keys ignore case.
	CostCenterRule struct {
		Position   string `json:"position"`
		Location   string `json:"location"`
		Campus     string `json:"campus"`
		AcadCareer string `json:"acad_career"`
		Key        string `json:"key"`
	}

	// CostCenterResolver walks its rules in declaration order; the first match wins.
	CostCenterResolver struct {
		rules    []CostCenterRule
		recorder FallbackRecorder
	}
)

func (r CostCenterRule) matches(position, location, campus, career string) bool {
	return r.Position == position &&
		strings.EqualFold(r.Location, location) &&
		strings.EqualFold(r.Campus, campus) &&
		strings.EqualFold(r.AcadCareer, career)
}

func NewCostCenterResolver(rules []CostCenterRule, opts ...Option) *CostCenterResolver {
	o := newOptions(opts)
	ccr := &CostCenterResolver{
		rules:    make([]CostCenterRule, len(rules)),
		recorder: o.recorder,
	}
	copy(ccr.rules, rules)
	return ccr
}

// Resolve returns the cost center key of the inputs or UnknownCostCenter.
// A blank AcadCareer is classified from the catalog number first.
func (ccr *CostCenterResolver) Resolve(in Inputs) string {
	career := strings.TrimSpace(in.AcadCareer)
	if career == "" {
		career = Classify(in.CatalogNum)
	}
	location := strings.TrimSpace(in.Location)
	campus := strings.TrimSpace(in.Campus)

	if career != "" {
		for _, rule := range ccr.rules {
			if rule.matches(in.Position, location, campus, career) {
				return rule.Key
			}
		}
	}
	ccr.recorder.RecordFallback(FallbackCostCenter, in.Position)
	return UnknownCostCenter
}

func (ccr *CostCenterResolver) Rules() []CostCenterRule {
	rules := make([]CostCenterRule, len(ccr.rules))
	copy(rules, ccr.rules)
	return rules
}
