package valuation

import (
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// RateRule maps an exact (Position, WeeklyHours, EducationLevel, FultonFellow) tuple to an amount.
	RateRule struct {
		Position       string          `json:"position"`
		WeeklyHours    int             `json:"weekly_hours"`
		EducationLevel string          `json:"education_level"`
		FultonFellow   string          `json:"fulton_fellow"`
		Amount         decimal.Decimal `json:"amount"`
	}

	// SessionRateFormula values a position by hours and class session instead of by table lookup
	// (session codes match exactly, "c" is not "C"):
	//   amount = multiplier(session) * UnitAmount * (hours / BaseHours)   (integer division)
	SessionRateFormula struct {
		Position           string          `json:"position"`
		BaseHours          int             `json:"base_hours"`
		UnitAmount         decimal.Decimal `json:"unit_amount"`
		SessionMultipliers map[string]int  `json:"session_multipliers"`
		DefaultMultiplier  int             `json:"default_multiplier"`
		EducationLevels    []string        `json:"education_levels"` // empty: any level
	}

	// ShadowedRule is a rule that can never match because an earlier rule has the same key.
	ShadowedRule struct {
		Rule        RateRule `json:"rule"`
		Winner      RateRule `json:"winner"`
		Conflicting bool     `json:"conflicting"` // amounts differ
	}

	rateKey struct {
		position string
		hours    int
		level    string
		fellow   string
	}

	// RateTable is an immutable decision table. Lookups are exact and the first declared rule wins.
	RateTable struct {
		rules    []RateRule
		index    map[rateKey]int // -> position in rules
		formulas map[string]SessionRateFormula
		shadowed []ShadowedRule
		recorder FallbackRecorder
	}
)

func (r RateRule) key() rateKey {
	return rateKey{position: r.Position, hours: r.WeeklyHours, level: r.EducationLevel, fellow: r.FultonFellow}
}

func (f SessionRateFormula) multiplier(session string) int {
	if m, ok := f.SessionMultipliers[strings.TrimSpace(session)]; ok {
		return m
	}
	return f.DefaultMultiplier
}

func (f SessionRateFormula) allows(level string) bool {
	if len(f.EducationLevels) == 0 {
		return true
	}
	for _, lvl := range f.EducationLevels {
		if lvl == level {
			return true
		}
	}
	return false
}

func (f SessionRateFormula) compute(hours int, level, session string) (decimal.Decimal, bool) {
	if !f.allows(level) || f.BaseHours <= 0 {
		return decimal.Zero, false
	}
	units := int64(f.multiplier(session) * (hours / f.BaseHours))
	return f.UnitAmount.Mul(decimal.NewFromInt(units)), true
}

func NewRateTable(rules []RateRule, formulas []SessionRateFormula, opts ...Option) *RateTable {
	o := newOptions(opts)
	rt := &RateTable{
		rules:    make([]RateRule, len(rules)),
		index:    make(map[rateKey]int, len(rules)),
		formulas: make(map[string]SessionRateFormula, len(formulas)),
		recorder: o.recorder,
	}
	copy(rt.rules, rules)

	for i, rule := range rt.rules {
		k := rule.key()
		if winner, exists := rt.index[k]; exists {
			rt.shadowed = append(rt.shadowed, ShadowedRule{
				Rule:        rule,
				Winner:      rt.rules[winner],
				Conflicting: !rule.Amount.Equal(rt.rules[winner].Amount),
			})
			continue
		}
		rt.index[k] = i
	}
	for _, f := range formulas {
		if _, exists := rt.formulas[f.Position]; !exists {
			rt.formulas[f.Position] = f
		}
	}
	return rt
}

// Compensation returns the amount owed for the given inputs; zero when nothing matches or hours are unknown.
func (rt *RateTable) Compensation(in Inputs) decimal.Decimal {
	if in.WeeklyHours == nil {
		return decimal.Zero
	}
	hours := *in.WeeklyHours

	if f, ok := rt.formulas[in.Position]; ok {
		amount, ok := f.compute(hours, in.EducationLevel, in.ClassSession)
		if !ok {
			rt.recorder.RecordFallback(FallbackRate, in.Position)
		}
		return amount
	}

	k := rateKey{position: in.Position, hours: hours, level: in.EducationLevel, fellow: in.FultonFellow}
	if i, ok := rt.index[k]; ok {
		return rt.rules[i].Amount
	}
	rt.recorder.RecordFallback(FallbackRate, in.Position)
	return decimal.Zero
}

// Rules returns the rules in declaration order.
func (rt *RateTable) Rules() []RateRule {
	rules := make([]RateRule, len(rt.rules))
	copy(rules, rt.rules)
	return rules
}

// Shadowed lists the rules hidden by an earlier rule with the same key.
func (rt *RateTable) Shadowed() []ShadowedRule {
	shadowed := make([]ShadowedRule, len(rt.shadowed))
	copy(shadowed, rt.shadowed)
	return shadowed
}

// Conflicts only keeps the shadowed rules disagreeing with the rule that wins.
func (rt *RateTable) Conflicts() []ShadowedRule {
	var conflicts []ShadowedRule
	for _, s := range rt.shadowed {
		if s.Conflicting {
			conflicts = append(conflicts, s)
		}
	}
	return conflicts
}
