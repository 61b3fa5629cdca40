package assignment

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/valuation"
)

type Field string

// input fields
const (
	FieldPosition       Field = "Position"
	FieldWeeklyHours    Field = "WeeklyHours"
	FieldEducationLevel Field = "EducationLevel"
	FieldFultonFellow   Field = "FultonFellow"
	FieldSubject        Field = "Subject"
	FieldCatalogNum     Field = "CatalogNum"
	FieldClassSession   Field = "ClassSession"
	FieldClassNum       Field = "ClassNum"
	FieldLocation       Field = "Location"
	FieldCampus         Field = "Campus"
)

// derived fields
const (
	FieldAcadCareer    Field = "AcadCareer"
	FieldCompensation  Field = "Compensation"
	FieldCostCenterKey Field = "CostCenterKey"
)

// FieldSet keeps insertion order so that changed fields are reported the way they were applied.
type FieldSet struct {
	order []Field
	set   map[Field]struct{}
}

func (fs *FieldSet) Add(f Field) {
	if fs.set == nil {
		fs.set = make(map[Field]struct{})
	}
	if _, ok := fs.set[f]; ok {
		return
	}
	fs.set[f] = struct{}{}
	fs.order = append(fs.order, f)
}

func (fs FieldSet) Has(f Field) bool {
	_, ok := fs.set[f]
	return ok
}

func (fs FieldSet) HasAny(fields ...Field) bool {
	for _, f := range fields {
		if fs.Has(f) {
			return true
		}
	}
	return false
}

func (fs FieldSet) Len() int { return len(fs.order) }

func (fs FieldSet) Fields() []Field {
	fields := make([]Field, len(fs.order))
	copy(fields, fs.order)
	return fields
}

// recomputeRule re-derives `derived` whenever any of `inputs` changed.
type recomputeRule struct {
	inputs  []Field
	derived Field
	compute func(a *Assignment, engine *valuation.Engine)
}

// recomputePolicy is evaluated in order: a derived field recomputed by an earlier rule
// counts as changed for the rules after it (CatalogNum -> AcadCareer -> CostCenterKey).
var recomputePolicy = []recomputeRule{
	{
		inputs:  []Field{FieldCatalogNum},
		derived: FieldAcadCareer,
		compute: func(a *Assignment, _ *valuation.Engine) {
			a.AcadCareer = valuation.Classify(a.CatalogNum)
		},
	},
	{
		inputs:  []Field{FieldPosition, FieldWeeklyHours, FieldEducationLevel, FieldFultonFellow, FieldClassSession},
		derived: FieldCompensation,
		compute: func(a *Assignment, engine *valuation.Engine) {
			a.Compensation = engine.Compensation(a.valuationInputs())
		},
	},
	{
		inputs:  []Field{FieldPosition, FieldLocation, FieldCampus, FieldAcadCareer},
		derived: FieldCostCenterKey,
		compute: func(a *Assignment, engine *valuation.Engine) {
			a.CostCenterKey = engine.CostCenter(a.valuationInputs())
		},
	},
}

// recompute applies the policy to `a` for the `changed` inputs and returns the derived fields it touched.
func recompute(a *Assignment, changed *FieldSet, engine *valuation.Engine) []Field {
	var derived []Field
	for _, rule := range recomputePolicy {
		if changed.HasAny(rule.inputs...) {
			rule.compute(a, engine)
			changed.Add(rule.derived)
			derived = append(derived, rule.derived)
		}
	}
	return derived
}

// Update is a sparse update of an assignment's business fields: nil fields are left untouched.
type Update struct {
	Position       *string `json:"position"`
	WeeklyHours    *int    `json:"weekly_hours" validate:"omitempty,min=0"`
	EducationLevel *string `json:"education_level"`
	FultonFellow   *string `json:"fulton_fellow" validate:"omitempty,yesno"`
	Subject        *string `json:"subject"`
	CatalogNum     *int    `json:"catalog_num"`
	ClassSession   *string `json:"class_session"`
	ClassNum       *string `json:"class_num"`
	Location       *string `json:"location"`
	Campus         *string `json:"campus"`
	Version        *int    `json:"version"` // optimistic check, skipped when absent
}

func (u *Update) Validate(validate *validator.Validate) error {
	for _, s := range []*string{u.Position, u.EducationLevel, u.FultonFellow, u.Subject, u.ClassSession, u.ClassNum, u.Location, u.Campus} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if u.FultonFellow != nil {
		*u.FultonFellow = valuation.NormalizeYesNo(*u.FultonFellow)
	}
	return validate.Struct(u)
}

func (u Update) IsEmpty() bool {
	return u.Position == nil && u.WeeklyHours == nil && u.EducationLevel == nil && u.FultonFellow == nil &&
		u.Subject == nil && u.CatalogNum == nil && u.ClassSession == nil && u.ClassNum == nil &&
		u.Location == nil && u.Campus == nil
}

func setString(dst *string, src *string, f Field, changed *FieldSet) {
	if src != nil && *src != *dst {
		*dst = *src
		changed.Add(f)
	}
}

func setInt(dst **int, src *int, f Field, changed *FieldSet) {
	if src == nil {
		return
	}
	if *dst == nil || **dst != *src {
		v := *src
		*dst = &v
		changed.Add(f)
	}
}

// Apply overwrites the present fields of `a` and returns the inputs whose value actually changed.
func (u Update) Apply(a *Assignment) FieldSet {
	var changed FieldSet
	setString(&a.Position, u.Position, FieldPosition, &changed)
	setInt(&a.WeeklyHours, u.WeeklyHours, FieldWeeklyHours, &changed)
	setString(&a.EducationLevel, u.EducationLevel, FieldEducationLevel, &changed)
	setString(&a.FultonFellow, u.FultonFellow, FieldFultonFellow, &changed)
	setString(&a.Subject, u.Subject, FieldSubject, &changed)
	setInt(&a.CatalogNum, u.CatalogNum, FieldCatalogNum, &changed)
	setString(&a.ClassSession, u.ClassSession, FieldClassSession, &changed)
	setString(&a.ClassNum, u.ClassNum, FieldClassNum, &changed)
	setString(&a.Location, u.Location, FieldLocation, &changed)
	setString(&a.Campus, u.Campus, FieldCampus, &changed)
	return changed
}
