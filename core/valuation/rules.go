package valuation

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Rules is the immutable rule bundle loaded once per process and injected into the tables.
type Rules struct {
	RateRules       []RateRule
	Formulas        []SessionRateFormula
	CostCenterRules []CostCenterRule
}

// rate ladder shared by the TA and Grader positions, in declaration order.
// (20, PHD, No) is declared twice with different amounts: the first one wins and
// RateTable.Conflicts reports the second.
var standardLadder = []RateRule{
	{WeeklyHours: 5, EducationLevel: "MS", FultonFellow: "No", Amount: decimal.NewFromInt(2200)},
	{WeeklyHours: 5, EducationLevel: "PHD", FultonFellow: "No", Amount: decimal.NewFromInt(2800)},
	{WeeklyHours: 10, EducationLevel: "MS", FultonFellow: "No", Amount: decimal.NewFromInt(6636)},
	{WeeklyHours: 10, EducationLevel: "PHD", FultonFellow: "No", Amount: decimal.NewFromInt(7250)},
	{WeeklyHours: 15, EducationLevel: "MS", FultonFellow: "No", Amount: decimal.NewFromInt(8500)},
	{WeeklyHours: 15, EducationLevel: "PHD", FultonFellow: "No", Amount: decimal.NewFromInt(8950)},
	{WeeklyHours: 20, EducationLevel: "MS", FultonFellow: "No", Amount: decimal.NewFromInt(13272)},
	{WeeklyHours: 20, EducationLevel: "PHD", FultonFellow: "No", Amount: decimal.NewFromInt(14500)},
	{WeeklyHours: 20, EducationLevel: "PHD", FultonFellow: "No", Amount: decimal.NewFromInt(13272)},
	{WeeklyHours: 20, EducationLevel: "PHD", FultonFellow: "Yes", Amount: decimal.RequireFromString("13461.24")},
	{WeeklyHours: 5, EducationLevel: "MS", FultonFellow: "Yes", Amount: decimal.NewFromInt(2500)},
	{WeeklyHours: 5, EducationLevel: "PHD", FultonFellow: "Yes", Amount: decimal.NewFromInt(3200)},
	{WeeklyHours: 10, EducationLevel: "MS", FultonFellow: "Yes", Amount: decimal.NewFromInt(6836)},
	{WeeklyHours: 10, EducationLevel: "PHD", FultonFellow: "Yes", Amount: decimal.NewFromInt(7550)},
	{WeeklyHours: 15, EducationLevel: "MS", FultonFellow: "Yes", Amount: decimal.NewFromInt(9000)},
	{WeeklyHours: 15, EducationLevel: "PHD", FultonFellow: "Yes", Amount: decimal.NewFromInt(9550)},
}

var gsaOneCreditLadder = []RateRule{
	{WeeklyHours: 10, EducationLevel: "PHD", FultonFellow: "No", Amount: decimal.RequireFromString("7552.5")},
	{WeeklyHours: 20, EducationLevel: "PHD", FultonFellow: "No", Amount: decimal.NewFromInt(16825)},
}

// campus grid shared by the TA-like positions.
var teachingGrid = []CostCenterRule{
	{Location: "TEMPE", Campus: "TEMPE", AcadCareer: CareerUndergrad, Key: "CC0136/PG02202"},
	{Location: "TEMPE", Campus: "TEMPE", AcadCareer: CareerGrad, Key: "CC0136/PG06875"},
	{Location: "POLY", Campus: "POLY", AcadCareer: CareerUndergrad, Key: "CC0136/PG02202"},
	{Location: "POLY", Campus: "POLY", AcadCareer: CareerGrad, Key: "CC0136/PG06875"},
	{Location: "ICOURSE", Campus: "TEMPE", AcadCareer: CareerUndergrad, Key: "CC0136/PG01943"},
	{Location: "ICOURSE", Campus: "TEMPE", AcadCareer: CareerGrad, Key: "CC0136/PG06316"},
	{Location: "ICOURSE", Campus: "POLY", AcadCareer: CareerUndergrad, Key: "CC0136/PG02003"},
}

var graderGrid = []CostCenterRule{
	{Location: "TEMPE", Campus: "TEMPE", AcadCareer: CareerUndergrad, Key: "CC0136/PG14700"},
	{Location: "TEMPE", Campus: "TEMPE", AcadCareer: CareerGrad, Key: "CC0136/PG14700"},
	{Location: "POLY", Campus: "POLY", AcadCareer: CareerUndergrad, Key: "CC0136/PG14700"},
	{Location: "POLY", Campus: "POLY", AcadCareer: CareerGrad, Key: "CC0136/PG14700"},
	{Location: "ICOURSE", Campus: "TEMPE", AcadCareer: CareerUndergrad, Key: "CC0136/PG01943"},
	{Location: "ICOURSE", Campus: "TEMPE", AcadCareer: CareerGrad, Key: "CC0136/PG06316"},
	{Location: "ICOURSE", Campus: "POLY", AcadCareer: CareerUndergrad, Key: "CC0136/PG02003"},
}

var iaGrid = []CostCenterRule{
	{Location: "TEMPE", Campus: "TEMPE", AcadCareer: CareerUndergrad, Key: "CC0136/PG15818"},
	{Location: "TEMPE", Campus: "TEMPE", AcadCareer: CareerGrad, Key: "CC0136/PG15818"},
	{Location: "POLY", Campus: "POLY", AcadCareer: CareerUndergrad, Key: "CC0136/PG15818"},
	{Location: "POLY", Campus: "POLY", AcadCareer: CareerGrad, Key: "CC0136/PG15818"},
	{Location: "ICOURSE", Campus: "TEMPE", AcadCareer: CareerUndergrad, Key: "CC0136/PG01943"},
	{Location: "ICOURSE", Campus: "TEMPE", AcadCareer: CareerGrad, Key: "CC0136/PG01943"},
	{Location: "ICOURSE", Campus: "POLY", AcadCareer: CareerUndergrad, Key: "CC0136/PG02003"},
	{Location: "ICOURSE", Campus: "POLY", AcadCareer: CareerGrad, Key: "CC0136/PG02003"},
}

func rateFamily(position string, ladder []RateRule) []RateRule {
	rules := make([]RateRule, 0, len(ladder))
	for _, r := range ladder {
		r.Position = position
		rules = append(rules, r)
	}
	return rules
}

func costCenterFamily(position string, grid []CostCenterRule) []CostCenterRule {
	rules := make([]CostCenterRule, 0, len(grid))
	for _, r := range grid {
		r.Position = position
		rules = append(rules, r)
	}
	return rules
}

// DefaultRules returns a fresh copy of the built-in rule bundle.
func DefaultRules() Rules {
	var rates []RateRule
	rates = append(rates, rateFamily("TA", standardLadder)...)
	rates = append(rates, rateFamily("TA (GSA) 1 credit", gsaOneCreditLadder)...)
	rates = append(rates, rateFamily("Grader", standardLadder)...)

	var costCenters []CostCenterRule
	costCenters = append(costCenters, costCenterFamily("TA (GSA) 1 credit", teachingGrid)...)
	costCenters = append(costCenters, costCenterFamily("TA", teachingGrid)...)
	costCenters = append(costCenters, costCenterFamily("IOR", teachingGrid)...)
	costCenters = append(costCenters, costCenterFamily("Grader", graderGrid)...)
	costCenters = append(costCenters, costCenterFamily("IA", iaGrid)...)

	return Rules{
		RateRules: rates,
		Formulas: []SessionRateFormula{
			{
				Position:           "IA",
				BaseHours:          5,
				UnitAmount:         decimal.NewFromInt(1100),
				SessionMultipliers: map[string]int{"C": 2},
				DefaultMultiplier:  1,
				EducationLevels:    []string{"MS", "PHD"},
			},
		},
		CostCenterRules: costCenters,
	}
}

// rule file layout

type (
	rateRuleFile struct {
		Position       string `mapstructure:"position"`
		WeeklyHours    int    `mapstructure:"weekly_hours"`
		EducationLevel string `mapstructure:"education_level"`
		FultonFellow   string `mapstructure:"fulton_fellow"`
		Amount         string `mapstructure:"amount"`
	}

	formulaFile struct {
		Position           string         `mapstructure:"position"`
		BaseHours          int            `mapstructure:"base_hours"`
		UnitAmount         string         `mapstructure:"unit_amount"`
		SessionMultipliers map[string]int `mapstructure:"session_multipliers"`
		DefaultMultiplier  int            `mapstructure:"default_multiplier"`
		EducationLevels    []string       `mapstructure:"education_levels"`
	}

	costCenterRuleFile struct {
		Position   string `mapstructure:"position"`
		Location   string `mapstructure:"location"`
		Campus     string `mapstructure:"campus"`
		AcadCareer string `mapstructure:"acad_career"`
		Key        string `mapstructure:"key"`
	}
)

// LoadRules reads a rule bundle from a YAML|JSON|TOML file (format inferred from its extension).
// An empty path yields DefaultRules. Sections missing from the file keep their built-in rules.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Rules{}, errors.Wrapf(err, "reading rules file %s", path)
	}

	if v.IsSet("rate_rules") {
		var raw []rateRuleFile
		if err := v.UnmarshalKey("rate_rules", &raw); err != nil {
			return Rules{}, errors.Wrap(err, "decoding rate_rules")
		}
		rates := make([]RateRule, 0, len(raw))
		for i, r := range raw {
			amount, err := decimal.NewFromString(r.Amount)
			if err != nil {
				return Rules{}, errors.Wrapf(err, "rate_rules[%d].amount", i)
			}
			rates = append(rates, RateRule{
				Position:       r.Position,
				WeeklyHours:    r.WeeklyHours,
				EducationLevel: r.EducationLevel,
				FultonFellow:   NormalizeYesNo(r.FultonFellow),
				Amount:         amount,
			})
		}
		rules.RateRules = rates
	}

	if v.IsSet("formulas") {
		var raw []formulaFile
		if err := v.UnmarshalKey("formulas", &raw); err != nil {
			return Rules{}, errors.Wrap(err, "decoding formulas")
		}
		formulas := make([]SessionRateFormula, 0, len(raw))
		for i, f := range raw {
			unit, err := decimal.NewFromString(f.UnitAmount)
			if err != nil {
				return Rules{}, errors.Wrapf(err, "formulas[%d].unit_amount", i)
			}
			if f.BaseHours <= 0 {
				return Rules{}, errors.Errorf("formulas[%d].base_hours must be positive", i)
			}
			// viper lowers map keys; session codes are upper-case
			multipliers := make(map[string]int, len(f.SessionMultipliers))
			for session, m := range f.SessionMultipliers {
				multipliers[strings.ToUpper(session)] = m
			}
			formulas = append(formulas, SessionRateFormula{
				Position:           f.Position,
				BaseHours:          f.BaseHours,
				UnitAmount:         unit,
				SessionMultipliers: multipliers,
				DefaultMultiplier:  f.DefaultMultiplier,
				EducationLevels:    f.EducationLevels,
			})
		}
		rules.Formulas = formulas
	}

	if v.IsSet("cost_center_rules") {
		var raw []costCenterRuleFile
		if err := v.UnmarshalKey("cost_center_rules", &raw); err != nil {
			return Rules{}, errors.Wrap(err, "decoding cost_center_rules")
		}
		costCenters := make([]CostCenterRule, 0, len(raw))
		for _, r := range raw {
			costCenters = append(costCenters, CostCenterRule(r))
		}
		rules.CostCenterRules = costCenters
	}

	return rules, nil
}
