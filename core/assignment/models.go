package assignment

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/directory"
	"github.com/trezcool/stipend/core/valuation"
)

// EditStatus
const (
	StatusActive  EditStatus = "Active"
	StatusEdited  EditStatus = "Edited"
	StatusDeleted EditStatus = "Deleted"
)

// class sessions counted by StudentSummary
var Sessions = []string{"A", "B", "C"}

type EditStatus string

// IsActive also holds for legacy records carrying no status.
func (s EditStatus) IsActive() bool {
	return s == "" || s == StatusActive
}

type Assignment struct {
	ID        int       `json:"id"`
	LineageID uuid.UUID `json:"lineage_id"`
	Version   int       `json:"version"`

	// student
	StudentID      int      `json:"student_id"`
	ASUrite        string   `json:"asurite"`
	FirstName      string   `json:"first_name"`
	LastName       string   `json:"last_name"`
	Email          string   `json:"email"`
	EducationLevel string   `json:"education_level"`
	CurrentGPA     *float64 `json:"cur_gpa"`
	CumulativeGPA  *float64 `json:"cum_gpa"`

	// business
	Position            string `json:"position"`
	WeeklyHours         *int   `json:"weekly_hours"`
	FultonFellow        string `json:"fulton_fellow"`
	Subject             string `json:"subject"`
	CatalogNum          *int   `json:"catalog_num"`
	ClassSession        string `json:"class_session"`
	ClassNum            string `json:"class_num"`
	Term                string `json:"term"`
	InstructorID        *int   `json:"instructor_id"`
	InstructorFirstName string `json:"instructor_first_name"`
	InstructorLastName  string `json:"instructor_last_name"`
	Location            string `json:"location"`
	Campus              string `json:"campus"`

	// derived
	AcadCareer    string          `json:"acad_career"`
	Compensation  decimal.Decimal `json:"compensation"`
	CostCenterKey string          `json:"cost_center_key"`

	EditStatus EditStatus `json:"edit_status"`

	// workflow
	PositionNumber string `json:"position_number"`
	I9Sent         bool   `json:"i9_sent"`
	SSNSent        bool   `json:"ssn_sent"`
	OfferSent      bool   `json:"offer_sent"`
	OfferSigned    bool   `json:"offer_signed"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (a Assignment) IsActive() bool {
	return a.EditStatus.IsActive()
}

func (a Assignment) InstructorName() string {
	return strings.TrimSpace(a.InstructorFirstName + " " + a.InstructorLastName)
}

func (a Assignment) valuationInputs() valuation.Inputs {
	return valuation.Inputs{
		Position:       a.Position,
		WeeklyHours:    a.WeeklyHours,
		EducationLevel: a.EducationLevel,
		FultonFellow:   a.FultonFellow,
		ClassSession:   a.ClassSession,
		Location:       a.Location,
		Campus:         a.Campus,
		AcadCareer:     a.AcadCareer,
		CatalogNum:     a.CatalogNum,
	}
}

// Value derives AcadCareer (when blank), Compensation and CostCenterKey from the record's inputs.
func (a *Assignment) Value(engine *valuation.Engine) {
	if strings.TrimSpace(a.AcadCareer) == "" {
		a.AcadCareer = valuation.Classify(a.CatalogNum)
	}
	in := a.valuationInputs()
	a.Compensation = engine.Compensation(in)
	a.CostCenterKey = engine.CostCenter(in)
}

// ApplyStudent copies the directory fields of a student onto the record.
func (a *Assignment) ApplyStudent(std directory.Student) {
	a.StudentID = std.ID
	a.ASUrite = std.ASUrite
	a.FirstName = std.FirstName
	a.LastName = std.LastName
	a.Email = std.Email
	a.EducationLevel = std.Degree
	a.CurrentGPA = std.CurrentGPA
	a.CumulativeGPA = std.CumulativeGPA
}

// ApplyClass copies the catalog fields of a class onto the record.
func (a *Assignment) ApplyClass(cls directory.Class) {
	a.ClassNum = cls.ClassNum
	a.Term = cls.Term
	a.Subject = cls.Subject
	a.CatalogNum = cls.CatalogNum
	a.ClassSession = cls.Session
	a.InstructorID = cls.InstructorID
	a.InstructorFirstName = cls.InstructorFirstName
	a.InstructorLastName = cls.InstructorLastName
	a.Location = cls.Location
	a.Campus = cls.Campus
	a.AcadCareer = cls.AcadCareer
}

// NewAssignment contains information needed to create a new Assignment directly.
// Derived fields are always computed, never accepted.
type NewAssignment struct {
	StudentID           int      `json:"student_id" validate:"required"`
	ASUrite             string   `json:"asurite"`
	FirstName           string   `json:"first_name"`
	LastName            string   `json:"last_name"`
	Email               string   `json:"email" validate:"omitempty,email"`
	EducationLevel      string   `json:"education_level"`
	CurrentGPA          *float64 `json:"cur_gpa"`
	CumulativeGPA       *float64 `json:"cum_gpa"`
	Position            string   `json:"position" validate:"required"`
	WeeklyHours         *int     `json:"weekly_hours" validate:"omitempty,min=0"`
	FultonFellow        string   `json:"fulton_fellow" validate:"yesno"`
	Subject             string   `json:"subject"`
	CatalogNum          *int     `json:"catalog_num"`
	ClassSession        string   `json:"class_session"`
	ClassNum            string   `json:"class_num" validate:"required"`
	Term                string   `json:"term" validate:"required,term"`
	InstructorID        *int     `json:"instructor_id"`
	InstructorFirstName string   `json:"instructor_first_name"`
	InstructorLastName  string   `json:"instructor_last_name"`
	Location            string   `json:"location"`
	Campus              string   `json:"campus"`
	AcadCareer          string   `json:"acad_career" validate:"omitempty,oneof=UGRD GRAD ugrd grad"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.ASUrite = core.CleanString(na.ASUrite, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Position = core.CleanString(na.Position)
	na.FultonFellow = core.CleanString(na.FultonFellow)
	na.ClassNum = core.CleanString(na.ClassNum)
	na.Term = core.CleanString(na.Term)
	na.AcadCareer = core.CleanString(na.AcadCareer)
	return validate.Struct(na)
}

func (na NewAssignment) toAssignment() Assignment {
	return Assignment{
		StudentID:           na.StudentID,
		ASUrite:             na.ASUrite,
		FirstName:           core.CleanString(na.FirstName),
		LastName:            core.CleanString(na.LastName),
		Email:               na.Email,
		EducationLevel:      core.CleanString(na.EducationLevel),
		CurrentGPA:          na.CurrentGPA,
		CumulativeGPA:       na.CumulativeGPA,
		Position:            na.Position,
		WeeklyHours:         na.WeeklyHours,
		FultonFellow:        valuation.NormalizeYesNo(na.FultonFellow),
		Subject:             core.CleanString(na.Subject),
		CatalogNum:          na.CatalogNum,
		ClassSession:        core.CleanString(na.ClassSession),
		ClassNum:            na.ClassNum,
		Term:                na.Term,
		InstructorID:        na.InstructorID,
		InstructorFirstName: core.CleanString(na.InstructorFirstName),
		InstructorLastName:  core.CleanString(na.InstructorLastName),
		Location:            core.CleanString(na.Location),
		Campus:              core.CleanString(na.Campus),
		AcadCareer:          strings.ToUpper(na.AcadCareer),
	}
}

// WorkflowUpdate defines the only fields the approval workflow may set directly.
type WorkflowUpdate struct {
	PositionNumber *string `json:"position_number"`
	I9Sent         *bool   `json:"i9_sent"`
	SSNSent        *bool   `json:"ssn_sent"`
	OfferSent      *bool   `json:"offer_sent"`
	OfferSigned    *bool   `json:"offer_signed"`
	Version        *int    `json:"version"`
}

func (wu WorkflowUpdate) apply(a *Assignment) {
	if wu.PositionNumber != nil {
		a.PositionNumber = core.CleanString(*wu.PositionNumber)
	}
	if wu.I9Sent != nil {
		a.I9Sent = *wu.I9Sent
	}
	if wu.SSNSent != nil {
		a.SSNSent = *wu.SSNSent
	}
	if wu.OfferSent != nil {
		a.OfferSent = *wu.OfferSent
	}
	if wu.OfferSigned != nil {
		a.OfferSigned = *wu.OfferSigned
	}
}

// EditRequest proposes a new version of an assignment. Only Position, WeeklyHours and ClassNum may change.
type EditRequest struct {
	OriginalID  int     `json:"id" validate:"required"`
	Version     *int    `json:"version"` // optimistic check, skipped when absent
	Position    *string `json:"position"`
	WeeklyHours *int    `json:"weekly_hours" validate:"omitempty,min=0"`
	ClassNum    *string `json:"class_num"`
}

// Validate cleans the overrides; blank strings count as absent.
func (er *EditRequest) Validate(validate *validator.Validate) error {
	er.Position = cleanOverride(er.Position)
	er.ClassNum = cleanOverride(er.ClassNum)
	return validate.Struct(er)
}

func cleanOverride(s *string) *string {
	if s == nil {
		return nil
	}
	if cs := core.CleanString(*s); cs != "" {
		return &cs
	}
	return nil
}

// EditResult is a superseding record along with the fields the edit actually changed.
type EditResult struct {
	Assignment
	ChangedFields []Field `json:"changed_fields"`
}

type BulkEditRequest struct {
	StudentID string        `json:"student_id" validate:"required"`
	Updates   []EditRequest `json:"updates" validate:"dive"`
	Deletes   []int         `json:"deletes"`
}

func (br *BulkEditRequest) Validate(validate *validator.Validate) error {
	br.StudentID = core.CleanString(br.StudentID)
	if len(br.Updates) == 0 && len(br.Deletes) == 0 {
		msg := "updates or deletes required"
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "updates", Error: msg})
	}
	for i := range br.Updates {
		if err := br.Updates[i].Validate(validate); err != nil {
			return err
		}
	}
	return validate.Struct(br)
}

type BulkEditResult struct {
	Updated []EditResult `json:"updated"`
	Deleted []int        `json:"deleted"`
	Skipped []int        `json:"skipped"`
	Status  string       `json:"status"`
}

// Summary is the per-session breakdown of a student's active assignments.
type Summary struct {
	StudentName    string         `json:"student_name"`
	ASUrite        string         `json:"asurite"`
	StudentID      int            `json:"student_id"`
	Position       string         `json:"position"`
	FultonFellow   string         `json:"fulton_fellow"`
	EducationLevel string         `json:"education_level"`
	SessionHours   map[string]int `json:"session_hours"`
	TotalHours     int            `json:"total_hours"`
	Assignments    []SummaryLine  `json:"assignments"`
}

type SummaryLine struct {
	ID             int    `json:"id"`
	Position       string `json:"position"`
	WeeklyHours    *int   `json:"weekly_hours"`
	ClassSession   string `json:"class_session"`
	Subject        string `json:"subject"`
	CatalogNum     *int   `json:"catalog_num"`
	ClassNum       string `json:"class_num"`
	InstructorName string `json:"instructor_name"`
	AcadCareer     string `json:"acad_career"`
}

type QueryFilter struct {
	StudentID      int       `query:"student_id"`
	Term           string    `query:"term"`
	ClassNum       string    `query:"class_num"`
	Position       string    `query:"position"`
	InstructorID   int       `query:"instructor_id"`
	LineageID      uuid.UUID `query:"-"`
	IncludeHistory bool      `query:"include_history"` // Edited & Deleted records too
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == 0 && qf.Term == "" && qf.ClassNum == "" && qf.Position == "" && qf.InstructorID == 0 &&
		qf.LineageID == uuid.Nil
}

func (qf *QueryFilter) Clean() {
	qf.Term = core.CleanString(qf.Term)
	qf.ClassNum = core.CleanString(qf.ClassNum)
	qf.Position = core.CleanString(qf.Position)
}
