package ingest

import (
	"context"
	"strconv"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/directory"
	"github.com/trezcool/stipend/core/valuation"
)

type Format string

const (
	FormatFiveField Format = "five_field"
	FormatLegacy    Format = "legacy"
)

// StudentIdentifierHeader names the 5-field column accepting a student id or an ASUrite alias.
const StudentIdentifierHeader = "Student_ID (ID number OR ASUrite accepted)"

var (
	// TemplateHeader is the header of the 5-field upload template.
	TemplateHeader = []string{"Position", "FultonFellow", "WeeklyHours", StudentIdentifierHeader, "ClassNum"}

	// LegacyHeader lists the columns of the fully populated legacy format.
	LegacyHeader = []string{
		"Position", "Student_ID", "ASUrite", "WeeklyHours", "FultonFellow", "Email", "EducationLevel",
		"Subject", "CatalogNum", "ClassSession", "ClassNum", "Term", "InstructorFirstName",
		"InstructorLastName", "Location", "Campus", "AcadCareer",
	}
)

// DetectFormat tells the 5-field template from the legacy layout.
func DetectFormat(header []string) Format {
	for _, h := range header {
		if strings.Contains(h, StudentIdentifierHeader) {
			return FormatFiveField
		}
	}
	return FormatLegacy
}

type (
	// UploadRecorder is notified of every upload attempt.
	UploadRecorder interface {
		RecordUpload(format string, committed int, err error)
	}

	nopUploadRecorder struct{}

	Option func(*Pipeline)

	// Batch is a parsed upload: fully valued records nothing has persisted yet.
	Batch struct {
		Format      Format
		Assignments []assignment.Assignment
	}

	Result struct {
		Format      Format                  `json:"format"`
		Committed   int                     `json:"committed"`
		Assignments []assignment.Assignment `json:"assignments"`
	}

	// PreviewRow is a 5-field row along with the directory data it resolves to.
	PreviewRow struct {
		Row                 int      `json:"row"`
		Position            string   `json:"position"`
		FultonFellow        string   `json:"fulton_fellow"`
		WeeklyHours         string   `json:"weekly_hours"`
		StudentID           int      `json:"student_id"`
		ASUrite             string   `json:"asurite"`
		FirstName           string   `json:"first_name"`
		LastName            string   `json:"last_name"`
		Email               string   `json:"email"`
		Degree              string   `json:"degree"`
		CurrentGPA          *float64 `json:"cur_gpa"`
		CumulativeGPA       *float64 `json:"cum_gpa"`
		ClassNum            string   `json:"class_num"`
		Subject             string   `json:"subject"`
		CatalogNum          *int     `json:"catalog_num"`
		SectionNum          string   `json:"section_num"`
		Title               string   `json:"title"`
		Term                string   `json:"term"`
		Session             string   `json:"session"`
		InstructorID        *int     `json:"instructor_id"`
		InstructorFirstName string   `json:"instructor_first_name"`
		InstructorLastName  string   `json:"instructor_last_name"`
		InstructorEmail     string   `json:"instructor_email"`
		Location            string   `json:"location"`
		Campus              string   `json:"campus"`
		AcadCareer          string   `json:"acad_career"`
	}

	Committer interface {
		CreateBatch(ctx context.Context, asgs []assignment.Assignment) ([]assignment.Assignment, error)
	}

	// Pipeline turns uploaded rows into assignments, all of them or none.
	Pipeline struct {
		committer  Committer
		resolver   *directory.Resolver
		engine     *valuation.Engine
		activeTerm string
		logger     core.Logger
		recorder   UploadRecorder
	}
)

func (nopUploadRecorder) RecordUpload(string, int, error) {}

func WithUploadRecorder(r UploadRecorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

func NewPipeline(
	committer Committer,
	resolver *directory.Resolver,
	engine *valuation.Engine,
	activeTerm string,
	logger core.Logger,
	opts ...Option,
) (*Pipeline, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(committer, "committer"),
		vala.IsNotNil(resolver, "resolver"),
		vala.IsNotNil(engine, "engine"),
		vala.StringNotEmpty(activeTerm, "activeTerm"),
		vala.IsNotNil(logger, "logger"),
	).Check()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		committer:  committer,
		resolver:   resolver,
		engine:     engine.Unrecorded(), // drafts; fallbacks are counted once, on commit
		activeTerm: activeTerm,
		logger:     logger,
		recorder:   nopUploadRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Parse reads every row and resolves it to a valued assignment; it stops at the first bad row.
func (p *Pipeline) Parse(ctx context.Context, src RowSource) (Batch, error) {
	header, records, err := readAll(src)
	if err != nil {
		return Batch{}, err
	}

	batch := Batch{
		Format:      DetectFormat(header),
		Assignments: make([]assignment.Assignment, 0, len(records)),
	}
	for _, rec := range records {
		var asg assignment.Assignment
		if batch.Format == FormatFiveField {
			asg, err = p.parseFiveField(ctx, rec)
		} else {
			asg, err = p.parseLegacy(ctx, rec)
		}
		if err != nil {
			return Batch{Format: batch.Format}, err
		}
		asg.Value(p.engine)
		batch.Assignments = append(batch.Assignments, asg)
	}
	return batch, nil
}

// Upload parses the whole source then commits its records in one unit.
func (p *Pipeline) Upload(ctx context.Context, src RowSource) (Result, error) {
	batch, err := p.Parse(ctx, src)
	if err != nil {
		p.recorder.RecordUpload(string(batch.Format), 0, err)
		return Result{}, err
	}

	created, err := p.committer.CreateBatch(ctx, batch.Assignments)
	p.recorder.RecordUpload(string(batch.Format), len(created), err)
	if err != nil {
		return Result{}, errors.Wrap(err, "committing upload")
	}

	p.logger.Info("assignments uploaded", map[string]interface{}{
		"format":    batch.Format,
		"committed": len(created),
	})
	return Result{Format: batch.Format, Committed: len(created), Assignments: created}, nil
}

// Preview resolves 5-field rows without persisting anything.
func (p *Pipeline) Preview(ctx context.Context, src RowSource) ([]PreviewRow, error) {
	header, records, err := readAll(src)
	if err != nil {
		return nil, err
	}
	if DetectFormat(header) != FormatFiveField {
		return nil, core.NewValidationError(errors.New("Preview only supports the new 5-field template format."))
	}

	rows := make([]PreviewRow, 0, len(records))
	for _, rec := range records {
		position := rec.get("Position")
		weeklyHours := rec.get("WeeklyHours")
		identifier := rec.get(StudentIdentifierHeader)
		classNum := rec.get("ClassNum")
		if position == "" || weeklyHours == "" || identifier == "" || classNum == "" {
			return nil, core.NewRowError(rec.num, nil, "Missing required field in row %d", rec.num)
		}

		std, err := p.resolver.Student(ctx, identifier)
		if err != nil {
			if errors.Cause(err) == directory.ErrStudentNotFound {
				return nil, core.NewRowError(rec.num, err, "Student not found for '%s' (row %d)", identifier, rec.num)
			}
			return nil, errors.Wrap(err, "resolving student")
		}
		cls, err := p.resolver.Class(ctx, classNum, p.activeTerm)
		if err != nil {
			if errors.Cause(err) == directory.ErrClassNotFound {
				return nil, core.NewRowError(rec.num, err, "ClassNum not found: '%s' (row %d)", classNum, rec.num)
			}
			return nil, errors.Wrap(err, "resolving class")
		}

		rows = append(rows, PreviewRow{
			Row:                 rec.num,
			Position:            position,
			FultonFellow:        valuation.NormalizeYesNo(rec.get("FultonFellow")),
			WeeklyHours:         weeklyHours,
			StudentID:           std.ID,
			ASUrite:             std.ASUrite,
			FirstName:           std.FirstName,
			LastName:            std.LastName,
			Email:               std.Email,
			Degree:              std.Degree,
			CurrentGPA:          std.CurrentGPA,
			CumulativeGPA:       std.CumulativeGPA,
			ClassNum:            cls.ClassNum,
			Subject:             cls.Subject,
			CatalogNum:          cls.CatalogNum,
			SectionNum:          cls.SectionNum,
			Title:               cls.Title,
			Term:                cls.Term,
			Session:             cls.Session,
			InstructorID:        cls.InstructorID,
			InstructorFirstName: cls.InstructorFirstName,
			InstructorLastName:  cls.InstructorLastName,
			InstructorEmail:     cls.InstructorEmail,
			Location:            cls.Location,
			Campus:              cls.Campus,
			AcadCareer:          cls.AcadCareer,
		})
	}
	return rows, nil
}

func (p *Pipeline) parseFiveField(ctx context.Context, rec record) (assignment.Assignment, error) {
	position := rec.get("Position")
	weeklyHours := rec.get("WeeklyHours")
	identifier := rec.get(StudentIdentifierHeader)
	classNum := rec.get("ClassNum")

	for _, required := range []struct{ name, value string }{
		{"Position", position},
		{"WeeklyHours", weeklyHours},
		{StudentIdentifierHeader, identifier},
		{"ClassNum", classNum},
	} {
		if required.value == "" {
			return assignment.Assignment{}, core.NewRowError(rec.num, nil, "Missing '%s' in row %d", required.name, rec.num)
		}
	}

	hours, err := strconv.Atoi(weeklyHours)
	if err != nil {
		return assignment.Assignment{}, core.NewRowError(rec.num, err, "Invalid 'WeeklyHours' in row %d", rec.num)
	}

	std, err := p.resolver.Student(ctx, identifier)
	if err != nil {
		if errors.Cause(err) == directory.ErrStudentNotFound {
			return assignment.Assignment{}, core.NewRowError(rec.num, err, "Student '%s' not found (row %d)", identifier, rec.num)
		}
		return assignment.Assignment{}, errors.Wrap(err, "resolving student")
	}
	cls, err := p.resolver.Class(ctx, classNum, p.activeTerm)
	if err != nil {
		if errors.Cause(err) == directory.ErrClassNotFound {
			return assignment.Assignment{}, core.NewRowError(rec.num, err, "ClassNum '%s' not found (row %d)", classNum, rec.num)
		}
		return assignment.Assignment{}, errors.Wrap(err, "resolving class")
	}

	asg := assignment.Assignment{
		Position:     position,
		WeeklyHours:  &hours,
		FultonFellow: valuation.NormalizeYesNo(rec.get("FultonFellow")),
	}
	asg.ApplyStudent(std)
	asg.ApplyClass(cls)
	return asg, nil
}

// optionalInt parses a nullable numeric column.
func optionalInt(rec record, name string) (*int, error) {
	v := rec.get(name)
	if v == "" {
		return nil, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil, core.NewRowError(rec.num, err, "Invalid '%s' in row %d", name, rec.num)
	}
	return &i, nil
}

func (p *Pipeline) parseLegacy(ctx context.Context, rec record) (assignment.Assignment, error) {
	studentID, err := optionalInt(rec, "Student_ID")
	if err != nil {
		return assignment.Assignment{}, err
	}
	if studentID == nil {
		return assignment.Assignment{}, core.NewRowError(rec.num, nil, "Missing 'Student_ID' in row %d", rec.num)
	}
	weeklyHours, err := optionalInt(rec, "WeeklyHours")
	if err != nil {
		return assignment.Assignment{}, err
	}
	catalogNum, err := optionalInt(rec, "CatalogNum")
	if err != nil {
		return assignment.Assignment{}, err
	}
	instructorID, err := optionalInt(rec, "InstructorID")
	if err != nil {
		return assignment.Assignment{}, err
	}

	asg := assignment.Assignment{
		StudentID:           *studentID,
		ASUrite:             strings.ToLower(rec.get("ASUrite")),
		FirstName:           rec.get("First_Name"),
		LastName:            rec.get("Last_Name"),
		Email:               rec.get("Email"),
		EducationLevel:      rec.get("EducationLevel"),
		Position:            rec.get("Position"),
		WeeklyHours:         weeklyHours,
		FultonFellow:        valuation.NormalizeYesNo(rec.get("FultonFellow")),
		Subject:             rec.get("Subject"),
		CatalogNum:          catalogNum,
		ClassSession:        rec.get("ClassSession"),
		ClassNum:            rec.get("ClassNum"),
		Term:                p.activeTerm,
		InstructorID:        instructorID,
		InstructorFirstName: rec.get("InstructorFirstName"),
		InstructorLastName:  rec.get("InstructorLastName"),
		Location:            rec.get("Location"),
		Campus:              rec.get("Campus"),
		AcadCareer:          valuation.Classify(catalogNum),
	}

	if asg.FultonFellow == "Yes" {
		std, err := p.resolver.StudentByID(ctx, asg.StudentID)
		switch {
		case err == nil:
			asg.CurrentGPA = std.CurrentGPA
			asg.CumulativeGPA = std.CumulativeGPA
		case errors.Cause(err) != directory.ErrStudentNotFound:
			return assignment.Assignment{}, errors.Wrap(err, "resolving student")
		}
	}
	return asg, nil
}
