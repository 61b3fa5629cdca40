package valuation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// fallback kinds
const (
	FallbackRate       = "rate"
	FallbackCostCenter = "cost_center"
)

type (
	// Inputs holds the assignment attributes the rules are evaluated against.
	Inputs struct {
		Position       string
		WeeklyHours    *int
		EducationLevel string
		FultonFellow   string
		ClassSession   string
		Location       string
		Campus         string
		AcadCareer     string
		CatalogNum     *int
	}

	// FallbackRecorder is notified every time no rule matched.
	// A fallback is not an error: it yields a zero amount or UnknownCostCenter.
	FallbackRecorder interface {
		RecordFallback(kind, position string)
	}

	nopRecorder struct{}

	Option func(*options)

	options struct {
		recorder FallbackRecorder
	}
)

func (nopRecorder) RecordFallback(string, string) {}

func WithFallbackRecorder(r FallbackRecorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

func newOptions(opts []Option) options {
	o := options{recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NormalizeYesNo returns "Yes" or "No" for any casing of those, "No" for blanks and `s` untouched otherwise.
func NormalizeYesNo(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "no":
		return "No"
	case "yes":
		return "Yes"
	}
	return strings.TrimSpace(s)
}

// Engine bundles both rule tables so callers can value an assignment in one go.
type Engine struct {
	Rates       *RateTable
	CostCenters *CostCenterResolver
}

func NewEngine(rules Rules, opts ...Option) *Engine {
	return &Engine{
		Rates:       NewRateTable(rules.RateRules, rules.Formulas, opts...),
		CostCenters: NewCostCenterResolver(rules.CostCenterRules, opts...),
	}
}

// Unrecorded returns an engine sharing e's rules that reports no fallback.
func (e *Engine) Unrecorded() *Engine {
	rates := *e.Rates
	rates.recorder = nopRecorder{}
	costCenters := *e.CostCenters
	costCenters.recorder = nopRecorder{}
	return &Engine{Rates: &rates, CostCenters: &costCenters}
}

func (e *Engine) Compensation(in Inputs) decimal.Decimal {
	return e.Rates.Compensation(in)
}

func (e *Engine) CostCenter(in Inputs) string {
	return e.CostCenters.Resolve(in)
}
