package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
)

const assignmentColumns = `id, lineage_id, version, student_id, asurite, first_name, last_name, email,
	education_level, current_gpa, cumulative_gpa, position, weekly_hours, fulton_fellow, subject,
	catalog_num, class_session, class_num, term, instructor_id, instructor_first_name,
	instructor_last_name, location, campus, acad_career, compensation, cost_center_key, edit_status,
	position_number, i9_sent, ssn_sent, offer_sent, offer_signed, created_at, updated_at`

const insertAssignmentQuery = `INSERT INTO assignment (
	lineage_id, version, student_id, asurite, first_name, last_name, email, education_level,
	current_gpa, cumulative_gpa, position, weekly_hours, fulton_fellow, subject, catalog_num,
	class_session, class_num, term, instructor_id, instructor_first_name, instructor_last_name,
	location, campus, acad_career, compensation, cost_center_key, edit_status, position_number,
	i9_sent, ssn_sent, offer_sent, offer_signed, created_at, updated_at
) VALUES (
	:lineage_id, :version, :student_id, :asurite, :first_name, :last_name, :email, :education_level,
	:current_gpa, :cumulative_gpa, :position, :weekly_hours, :fulton_fellow, :subject, :catalog_num,
	:class_session, :class_num, :term, :instructor_id, :instructor_first_name, :instructor_last_name,
	:location, :campus, :acad_career, :compensation, :cost_center_key, :edit_status, :position_number,
	:i9_sent, :ssn_sent, :offer_sent, :offer_signed, :created_at, :updated_at
) RETURNING ` + assignmentColumns

const updateAssignmentQuery = `UPDATE assignment SET
	asurite = :asurite, first_name = :first_name, last_name = :last_name, email = :email,
	education_level = :education_level, current_gpa = :current_gpa, cumulative_gpa = :cumulative_gpa,
	position = :position, weekly_hours = :weekly_hours, fulton_fellow = :fulton_fellow,
	subject = :subject, catalog_num = :catalog_num, class_session = :class_session,
	class_num = :class_num, term = :term, instructor_id = :instructor_id,
	instructor_first_name = :instructor_first_name, instructor_last_name = :instructor_last_name,
	location = :location, campus = :campus, acad_career = :acad_career,
	compensation = :compensation, cost_center_key = :cost_center_key,
	position_number = :position_number, i9_sent = :i9_sent, ssn_sent = :ssn_sent,
	offer_sent = :offer_sent, offer_signed = :offer_signed, updated_at = :updated_at,
	version = version + 1
WHERE id = :id AND version = :version AND edit_status = 'Active'
RETURNING ` + assignmentColumns

// orderable columns
var assignmentOrdering = map[string]struct{}{
	"id": {}, "version": {}, "student_id": {}, "position": {}, "weekly_hours": {}, "class_num": {},
	"term": {}, "compensation": {}, "created_at": {}, "updated_at": {},
}

type assignmentRow struct {
	ID                  int             `db:"id"`
	LineageID           uuid.UUID       `db:"lineage_id"`
	Version             int             `db:"version"`
	StudentID           int             `db:"student_id"`
	ASUrite             null.String     `db:"asurite"`
	FirstName           null.String     `db:"first_name"`
	LastName            null.String     `db:"last_name"`
	Email               null.String     `db:"email"`
	EducationLevel      null.String     `db:"education_level"`
	CurrentGPA          null.Float64    `db:"current_gpa"`
	CumulativeGPA       null.Float64    `db:"cumulative_gpa"`
	Position            string          `db:"position"`
	WeeklyHours         null.Int        `db:"weekly_hours"`
	FultonFellow        null.String     `db:"fulton_fellow"`
	Subject             null.String     `db:"subject"`
	CatalogNum          null.Int        `db:"catalog_num"`
	ClassSession        null.String     `db:"class_session"`
	ClassNum            string          `db:"class_num"`
	Term                string          `db:"term"`
	InstructorID        null.Int        `db:"instructor_id"`
	InstructorFirstName null.String     `db:"instructor_first_name"`
	InstructorLastName  null.String     `db:"instructor_last_name"`
	Location            null.String     `db:"location"`
	Campus              null.String     `db:"campus"`
	AcadCareer          null.String     `db:"acad_career"`
	Compensation        decimal.Decimal `db:"compensation"`
	CostCenterKey       string          `db:"cost_center_key"`
	EditStatus          string          `db:"edit_status"`
	PositionNumber      null.String     `db:"position_number"`
	I9Sent              bool            `db:"i9_sent"`
	SSNSent             bool            `db:"ssn_sent"`
	OfferSent           bool            `db:"offer_sent"`
	OfferSigned         bool            `db:"offer_signed"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}

func nullString(s string) null.String { return null.NewString(s, s != "") }

func nullInt(i *int) null.Int {
	if i == nil {
		return null.Int{}
	}
	return null.IntFrom(*i)
}

func intPtr(i null.Int) *int {
	if !i.Valid {
		return nil
	}
	v := i.Int
	return &v
}

type assignmentRepository struct {
	db core.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db core.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo assignmentRepository) boil(asg assignment.Assignment) assignmentRow {
	status := asg.EditStatus
	if status == "" {
		status = assignment.StatusActive
	}
	return assignmentRow{
		ID:                  asg.ID,
		LineageID:           asg.LineageID,
		Version:             asg.Version,
		StudentID:           asg.StudentID,
		ASUrite:             nullString(asg.ASUrite),
		FirstName:           nullString(asg.FirstName),
		LastName:            nullString(asg.LastName),
		Email:               nullString(asg.Email),
		EducationLevel:      nullString(asg.EducationLevel),
		CurrentGPA:          null.Float64FromPtr(asg.CurrentGPA),
		CumulativeGPA:       null.Float64FromPtr(asg.CumulativeGPA),
		Position:            asg.Position,
		WeeklyHours:         nullInt(asg.WeeklyHours),
		FultonFellow:        nullString(asg.FultonFellow),
		Subject:             nullString(asg.Subject),
		CatalogNum:          nullInt(asg.CatalogNum),
		ClassSession:        nullString(asg.ClassSession),
		ClassNum:            asg.ClassNum,
		Term:                asg.Term,
		InstructorID:        nullInt(asg.InstructorID),
		InstructorFirstName: nullString(asg.InstructorFirstName),
		InstructorLastName:  nullString(asg.InstructorLastName),
		Location:            nullString(asg.Location),
		Campus:              nullString(asg.Campus),
		AcadCareer:          nullString(asg.AcadCareer),
		Compensation:        asg.Compensation,
		CostCenterKey:       asg.CostCenterKey,
		EditStatus:          string(status),
		PositionNumber:      nullString(asg.PositionNumber),
		I9Sent:              asg.I9Sent,
		SSNSent:             asg.SSNSent,
		OfferSent:           asg.OfferSent,
		OfferSigned:         asg.OfferSigned,
		CreatedAt:           asg.CreatedAt.UTC(),
		UpdatedAt:           asg.UpdatedAt.UTC(),
	}
}

func (repo assignmentRepository) unboil(row assignmentRow) assignment.Assignment {
	return assignment.Assignment{
		ID:                  row.ID,
		LineageID:           row.LineageID,
		Version:             row.Version,
		StudentID:           row.StudentID,
		ASUrite:             row.ASUrite.String,
		FirstName:           row.FirstName.String,
		LastName:            row.LastName.String,
		Email:               row.Email.String,
		EducationLevel:      row.EducationLevel.String,
		CurrentGPA:          row.CurrentGPA.Ptr(),
		CumulativeGPA:       row.CumulativeGPA.Ptr(),
		Position:            row.Position,
		WeeklyHours:         intPtr(row.WeeklyHours),
		FultonFellow:        row.FultonFellow.String,
		Subject:             row.Subject.String,
		CatalogNum:          intPtr(row.CatalogNum),
		ClassSession:        row.ClassSession.String,
		ClassNum:            row.ClassNum,
		Term:                row.Term,
		InstructorID:        intPtr(row.InstructorID),
		InstructorFirstName: row.InstructorFirstName.String,
		InstructorLastName:  row.InstructorLastName.String,
		Location:            row.Location.String,
		Campus:              row.Campus.String,
		AcadCareer:          row.AcadCareer.String,
		Compensation:        row.Compensation,
		CostCenterKey:       row.CostCenterKey,
		EditStatus:          assignment.EditStatus(row.EditStatus),
		PositionNumber:      row.PositionNumber.String,
		I9Sent:              row.I9Sent,
		SSNSent:             row.SSNSent,
		OfferSent:           row.OfferSent,
		OfferSigned:         row.OfferSigned,
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
}

// trapNoRowsErr maps psql "no rows" err to assignment.ErrNotFound
func (repo assignmentRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return assignment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps a second active record in a lineage to assignment.ErrConflict
func (repo assignmentRepository) trapUniqueErr(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23505" {
		return assignment.ErrConflict
	}
	return errors.Wrap(err, msg)
}

func (repo assignmentRepository) insert(ctx context.Context, exec core.DBExecutor, asg assignment.Assignment) (assignment.Assignment, error) {
	query, args, err := sqlx.Named(insertAssignmentQuery, repo.boil(asg))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "binding assignment")
	}
	var row assignmentRow
	if err = exec.QueryRowxContext(ctx, exec.Rebind(query), args...).StructScan(&row); err != nil {
		return assignment.Assignment{}, repo.trapUniqueErr(err, "inserting assignment")
	}
	return repo.unboil(row), nil
}

// inTx runs `fn` in a transaction, rolled back when `fn` fails.
func (repo assignmentRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo assignmentRepository) CreateAssignments(ctx context.Context, asgs []assignment.Assignment) ([]assignment.Assignment, error) {
	created := make([]assignment.Assignment, 0, len(asgs))
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, asg := range asgs {
			saved, err := repo.insert(ctx, tx, asg)
			if err != nil {
				return err
			}
			created = append(created, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo assignmentRepository) GetAssignment(ctx context.Context, id int) (assignment.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+assignmentColumns+" FROM assignment WHERE id = $1", id)
	if err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, "getting assignment")
	}
	return repo.unboil(row), nil
}

// buildQuery returns the filtered & ordered select along with its arguments.
func buildQuery(filter *assignment.QueryFilter, ordering []core.DBOrdering) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	where := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter == nil || !filter.IncludeHistory {
		conds = append(conds, "edit_status = 'Active'")
	}
	if filter != nil {
		if filter.StudentID != 0 {
			where("student_id = $%d", filter.StudentID)
		}
		if filter.Term != "" {
			where("term = $%d", filter.Term)
		}
		if filter.ClassNum != "" {
			where("class_num = $%d", filter.ClassNum)
		}
		if filter.Position != "" {
			where("LOWER(position) = LOWER($%d)", filter.Position)
		}
		if filter.InstructorID != 0 {
			where("instructor_id = $%d", filter.InstructorID)
		}
		if filter.LineageID != uuid.Nil {
			where("lineage_id = $%d", filter.LineageID)
		}
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + assignmentColumns + " FROM assignment")
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if _, ok := assignmentOrdering[ord.Field]; ok {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "id ASC")
	}
	sb.WriteString(" ORDER BY " + strings.Join(orderList, ", "))
	return sb.String(), args
}

func (repo assignmentRepository) QueryAssignments(ctx context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	query, args := buildQuery(filter, ordering)
	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgs := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		asgs = append(asgs, repo.unboil(row))
	}
	return asgs, nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	query, args, err := sqlx.Named(updateAssignmentQuery, repo.boil(asg))
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "binding assignment")
	}

	var row assignmentRow
	err = repo.db.QueryRowxContext(ctx, repo.db.Rebind(query), args...).StructScan(&row)
	if err == sql.ErrNoRows {
		// either gone or changed since it was read
		if _, getErr := repo.GetAssignment(ctx, asg.ID); getErr != nil {
			return assignment.Assignment{}, getErr
		}
		return assignment.Assignment{}, assignment.ErrConflict
	}
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return repo.unboil(row), nil
}

func (repo assignmentRepository) Supersede(ctx context.Context, original, successor assignment.Assignment) (assignment.Assignment, error) {
	var saved assignment.Assignment
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			"UPDATE assignment SET edit_status = 'Edited', updated_at = $1 WHERE id = $2 AND version = $3 AND edit_status = 'Active'",
			successor.CreatedAt.UTC(), original.ID, original.Version,
		)
		if err != nil {
			return errors.Wrap(err, "retiring original")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "retiring original")
		}
		if n == 0 {
			return assignment.ErrConflict
		}

		successor.LineageID = original.LineageID
		successor.EditStatus = assignment.StatusActive
		saved, err = repo.insert(ctx, tx, successor)
		return err
	})
	if err != nil {
		return assignment.Assignment{}, err
	}
	return saved, nil
}

func (repo assignmentRepository) MarkDeleted(ctx context.Context, ids ...int) ([]int, error) {
	deleted := make([]int, 0, len(ids))
	if len(ids) == 0 {
		return deleted, nil
	}
	err := repo.db.SelectContext(
		ctx, &deleted,
		"UPDATE assignment SET edit_status = 'Deleted', updated_at = $1 WHERE id = ANY($2) AND edit_status = 'Active' RETURNING id",
		time.Now().UTC(), pq.Array(ids),
	)
	if err != nil {
		return nil, errors.Wrap(err, "deleting assignments")
	}
	return deleted, nil
}
