package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/directory"
)

const (
	studentColumns = "id, asurite, first_name, last_name, email, degree, current_gpa, cumulative_gpa"
	classColumns   = `class_num, term, subject, catalog_num, section_num, title, session, instructor_id,
	instructor_first_name, instructor_last_name, instructor_email, location, campus, acad_career`
)

type (
	studentRow struct {
		ID            int          `db:"id"`
		ASUrite       null.String  `db:"asurite"`
		FirstName     null.String  `db:"first_name"`
		LastName      null.String  `db:"last_name"`
		Email         null.String  `db:"email"`
		Degree        null.String  `db:"degree"`
		CurrentGPA    null.Float64 `db:"current_gpa"`
		CumulativeGPA null.Float64 `db:"cumulative_gpa"`
	}

	classRow struct {
		ClassNum            string      `db:"class_num"`
		Term                string      `db:"term"`
		Subject             null.String `db:"subject"`
		CatalogNum          null.Int    `db:"catalog_num"`
		SectionNum          null.String `db:"section_num"`
		Title               null.String `db:"title"`
		Session             null.String `db:"session"`
		InstructorID        null.Int    `db:"instructor_id"`
		InstructorFirstName null.String `db:"instructor_first_name"`
		InstructorLastName  null.String `db:"instructor_last_name"`
		InstructorEmail     null.String `db:"instructor_email"`
		Location            null.String `db:"location"`
		Campus              null.String `db:"campus"`
		AcadCareer          null.String `db:"acad_career"`
	}
)

// directoryRepository reads the Student Directory & Class Catalog tables.
type directoryRepository struct {
	db core.DBExecutor
}

var _ directory.Repository = (*directoryRepository)(nil) // interface compliance check

func NewDirectoryRepository(db core.DBExecutor) directory.Repository {
	return &directoryRepository{db: db}
}

func (repo directoryRepository) unboilStudent(row studentRow) directory.Student {
	return directory.Student{
		ID:            row.ID,
		ASUrite:       row.ASUrite.String,
		FirstName:     row.FirstName.String,
		LastName:      row.LastName.String,
		Email:         row.Email.String,
		Degree:        row.Degree.String,
		CurrentGPA:    row.CurrentGPA.Ptr(),
		CumulativeGPA: row.CumulativeGPA.Ptr(),
	}
}

func (repo directoryRepository) unboilClass(row classRow) directory.Class {
	return directory.Class{
		ClassNum:            row.ClassNum,
		Term:                row.Term,
		Subject:             row.Subject.String,
		CatalogNum:          intPtr(row.CatalogNum),
		SectionNum:          row.SectionNum.String,
		Title:               row.Title.String,
		Session:             row.Session.String,
		InstructorID:        intPtr(row.InstructorID),
		InstructorFirstName: row.InstructorFirstName.String,
		InstructorLastName:  row.InstructorLastName.String,
		InstructorEmail:     row.InstructorEmail.String,
		Location:            row.Location.String,
		Campus:              row.Campus.String,
		AcadCareer:          row.AcadCareer.String,
	}
}

func (repo directoryRepository) getStudent(ctx context.Context, where string, arg interface{}) (directory.Student, error) {
	var row studentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+studentColumns+" FROM student WHERE "+where, arg); err != nil {
		if err == sql.ErrNoRows {
			return directory.Student{}, directory.ErrStudentNotFound
		}
		return directory.Student{}, errors.Wrap(err, "getting student")
	}
	return repo.unboilStudent(row), nil
}

func (repo directoryRepository) GetStudentByID(ctx context.Context, id int) (directory.Student, error) {
	return repo.getStudent(ctx, "id = $1", id)
}

func (repo directoryRepository) GetStudentByAlias(ctx context.Context, alias string) (directory.Student, error) {
	return repo.getStudent(ctx, "LOWER(asurite) = LOWER($1)", alias)
}

func (repo directoryRepository) GetClass(ctx context.Context, classNum, term string) (directory.Class, error) {
	var row classRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+classColumns+" FROM class WHERE class_num = $1 AND term = $2", classNum, term)
	if err != nil {
		if err == sql.ErrNoRows {
			return directory.Class{}, directory.ErrClassNotFound
		}
		return directory.Class{}, errors.Wrap(err, "getting class")
	}
	return repo.unboilClass(row), nil
}
