package assignment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/directory"
	"github.com/trezcool/stipend/core/valuation"
)

var (
	// errors
	ErrNotFound = errors.New("assignment not found")
	ErrConflict = errors.New("assignment was modified concurrently")
)

type (
	Repository interface {
		// CreateAssignments inserts all assignments or none of them.
		CreateAssignments(ctx context.Context, asgs []Assignment) ([]Assignment, error)
		GetAssignment(ctx context.Context, id int) (Assignment, error)
		// QueryAssignments only returns active records unless filter.IncludeHistory is set.
		QueryAssignments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		// UpdateAssignment overwrites the active record `asg.ID` if it is still at `asg.Version`
		// and bumps its version; ErrConflict otherwise.
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		// Supersede flips `original` to Edited if it is still active at `original.Version` and
		// inserts `successor` as the active record of the lineage, as one unit; ErrConflict otherwise.
		Supersede(ctx context.Context, original, successor Assignment) (Assignment, error)
		// MarkDeleted tombstones the active records among `ids` and returns the ones it tombstoned.
		MarkDeleted(ctx context.Context, ids ...int) ([]int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, na NewAssignment) (Assignment, error)
		CreateBatch(ctx context.Context, asgs []Assignment) ([]Assignment, error)
		Get(ctx context.Context, id int) (Assignment, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
		History(ctx context.Context, lineageID uuid.UUID) ([]Assignment, error)
		Diff(ctx context.Context, lineageID uuid.UUID) (string, error)
		PartialUpdate(ctx context.Context, id int, u Update) (EditResult, error)
		UpdateWorkflow(ctx context.Context, id int, wu WorkflowUpdate) (Assignment, error)
		ProposeEdit(ctx context.Context, er EditRequest) (EditResult, error)
		Delete(ctx context.Context, ids ...int) error
		BulkEdit(ctx context.Context, br BulkEditRequest) (BulkEditResult, error)
		StudentSummary(ctx context.Context, identifier string) (Summary, error)
		TotalHours(ctx context.Context, studentID int) (int, error)
	}

	Service struct {
		repo     Repository
		resolver *directory.Resolver
		engine   *valuation.Engine
		logger   core.Logger
		now      func() time.Time
	}
)

var _ ServiceInterface = (*Service)(nil) // interface compliance check

func NewService(repo Repository, resolver *directory.Resolver, engine *valuation.Engine, logger core.Logger) (*Service, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(resolver, "resolver"),
		vala.IsNotNil(engine, "engine"),
		vala.IsNotNil(logger, "logger"),
	).Check()
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:     repo,
		resolver: resolver,
		engine:   engine,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Engine exposes the valuation engine the service was built with.
func (svc *Service) Engine() *valuation.Engine {
	return svc.engine
}

// flagFallbacks surfaces records the rules could not value to the logs, for human review.
func (svc *Service) flagFallbacks(asg Assignment) {
	if asg.CostCenterKey == valuation.UnknownCostCenter || asg.Compensation.IsZero() {
		svc.logger.Warn("assignment valued through fallback", map[string]interface{}{
			"id":              asg.ID,
			"student_id":      asg.StudentID,
			"position":        asg.Position,
			"class_num":       asg.ClassNum,
			"compensation":    asg.Compensation.String(),
			"cost_center_key": asg.CostCenterKey,
		})
	}
}

// prepare values a brand new record and opens its lineage.
func (svc *Service) prepare(asg *Assignment, now time.Time) {
	asg.ID = 0
	asg.LineageID = uuid.New()
	asg.Version = 1
	asg.EditStatus = StatusActive
	asg.FultonFellow = valuation.NormalizeYesNo(asg.FultonFellow)
	asg.Value(svc.engine)
	asg.CreatedAt = now
	asg.UpdatedAt = now
}

func (svc *Service) Create(ctx context.Context, na NewAssignment) (Assignment, error) {
	asg := na.toAssignment()
	svc.prepare(&asg, svc.now())

	created, err := svc.repo.CreateAssignments(ctx, []Assignment{asg})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	svc.flagFallbacks(created[0])
	return created[0], nil
}

// CreateBatch persists fully populated records all together, or none of them.
func (svc *Service) CreateBatch(ctx context.Context, asgs []Assignment) ([]Assignment, error) {
	if len(asgs) == 0 {
		return []Assignment{}, nil
	}
	now := svc.now()
	batch := make([]Assignment, len(asgs))
	for i, asg := range asgs {
		svc.prepare(&asg, now)
		batch[i] = asg
	}

	created, err := svc.repo.CreateAssignments(ctx, batch)
	if err != nil {
		return nil, errors.Wrap(err, "creating assignments")
	}
	for _, asg := range created {
		svc.flagFallbacks(asg)
	}
	return created, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Assignment, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryAssignments(ctx, filter, ordering)
}

// History returns every record of a lineage, oldest first.
func (svc *Service) History(ctx context.Context, lineageID uuid.UUID) ([]Assignment, error) {
	asgs, err := svc.repo.QueryAssignments(
		ctx,
		&QueryFilter{LineageID: lineageID, IncludeHistory: true},
		[]core.DBOrdering{{Field: "version", Ascending: true}, {Field: "id", Ascending: true}},
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying lineage")
	}
	if len(asgs) == 0 {
		return nil, ErrNotFound
	}
	return asgs, nil
}

// loadActive returns the record `id` if it may still be changed.
func (svc *Service) loadActive(ctx context.Context, id int, version *int) (Assignment, error) {
	asg, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	switch {
	case asg.EditStatus == StatusDeleted:
		return Assignment{}, ErrNotFound
	case !asg.IsActive():
		return Assignment{}, ErrConflict
	case version != nil && *version != asg.Version:
		return Assignment{}, ErrConflict
	}
	return asg, nil
}

// PartialUpdate applies a sparse update in place and recomputes only the derived fields whose inputs changed.
func (svc *Service) PartialUpdate(ctx context.Context, id int, u Update) (EditResult, error) {
	asg, err := svc.loadActive(ctx, id, u.Version)
	if err != nil {
		return EditResult{}, err
	}

	changed := u.Apply(&asg)
	if changed.Len() == 0 {
		return EditResult{Assignment: asg, ChangedFields: []Field{}}, nil
	}
	recompute(&asg, &changed, svc.engine)
	asg.UpdatedAt = svc.now()

	updated, err := svc.repo.UpdateAssignment(ctx, asg)
	if err != nil {
		return EditResult{}, errors.Wrap(err, "updating assignment")
	}
	svc.flagFallbacks(updated)
	return EditResult{Assignment: updated, ChangedFields: changed.Fields()}, nil
}

func (svc *Service) UpdateWorkflow(ctx context.Context, id int, wu WorkflowUpdate) (Assignment, error) {
	asg, err := svc.loadActive(ctx, id, wu.Version)
	if err != nil {
		return Assignment{}, err
	}
	wu.apply(&asg)
	asg.UpdatedAt = svc.now()

	updated, err := svc.repo.UpdateAssignment(ctx, asg)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment workflow")
	}
	return updated, nil
}

// ProposeEdit supersedes an active record by a new version carrying the requested overrides.
// The original keeps its business fields and is only flagged as Edited.
func (svc *Service) ProposeEdit(ctx context.Context, er EditRequest) (EditResult, error) {
	orig, err := svc.loadActive(ctx, er.OriginalID, er.Version)
	if err != nil {
		return EditResult{}, err
	}
	return svc.proposeEdit(ctx, orig, er)
}

func (svc *Service) proposeEdit(ctx context.Context, orig Assignment, er EditRequest) (EditResult, error) {
	now := svc.now()
	next := orig
	next.ID = 0
	next.Version = orig.Version + 1
	next.EditStatus = StatusActive
	next.CreatedAt = now
	next.UpdatedAt = now

	var changed FieldSet
	setString(&next.Position, er.Position, FieldPosition, &changed)
	setInt(&next.WeeklyHours, er.WeeklyHours, FieldWeeklyHours, &changed)
	if er.ClassNum != nil && *er.ClassNum != orig.ClassNum {
		cls, err := svc.resolver.Class(ctx, *er.ClassNum, orig.Term)
		if err != nil {
			return EditResult{}, errors.Wrapf(err, "resolving ClassNum %s", *er.ClassNum)
		}
		next.ApplyClass(cls)
		changed.Add(FieldClassNum)
	}
	next.Value(svc.engine)

	saved, err := svc.repo.Supersede(ctx, orig, next)
	if err != nil {
		return EditResult{}, errors.Wrap(err, "superseding assignment")
	}
	svc.flagFallbacks(saved)
	return EditResult{Assignment: saved, ChangedFields: changed.Fields()}, nil
}

// Delete tombstones the given records. Unknown or already retired ids are ignored.
func (svc *Service) Delete(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := svc.repo.MarkDeleted(ctx, ids...); err != nil {
		return errors.Wrap(err, "deleting assignments")
	}
	return nil
}

// BulkEdit proposes edits then deletes records of one student. Each edit is atomic on its own.
// Records that do not exist, are retired or belong to another student are skipped.
func (svc *Service) BulkEdit(ctx context.Context, br BulkEditRequest) (BulkEditResult, error) {
	std, err := svc.resolver.Student(ctx, br.StudentID)
	if err != nil {
		return BulkEditResult{}, err
	}

	result := BulkEditResult{
		Updated: make([]EditResult, 0, len(br.Updates)),
		Deleted: make([]int, 0, len(br.Deletes)),
		Skipped: make([]int, 0),
		Status:  "success",
	}

	for _, er := range br.Updates {
		orig, err := svc.loadActive(ctx, er.OriginalID, er.Version)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				result.Skipped = append(result.Skipped, er.OriginalID)
				continue
			}
			return BulkEditResult{}, err
		}
		if orig.StudentID != std.ID {
			result.Skipped = append(result.Skipped, er.OriginalID)
			continue
		}
		res, err := svc.proposeEdit(ctx, orig, er)
		if err != nil {
			return BulkEditResult{}, err
		}
		result.Updated = append(result.Updated, res)
	}

	toDelete := make([]int, 0, len(br.Deletes))
	for _, id := range br.Deletes {
		asg, err := svc.repo.GetAssignment(ctx, id)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			return BulkEditResult{}, errors.Wrap(err, "getting assignment")
		}
		if asg.StudentID != std.ID {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		toDelete = append(toDelete, id)
	}
	if len(toDelete) > 0 {
		if _, err = svc.repo.MarkDeleted(ctx, toDelete...); err != nil {
			return BulkEditResult{}, errors.Wrap(err, "deleting assignments")
		}
	}
	result.Deleted = append(result.Deleted, toDelete...)

	svc.logger.Info("bulk edit applied", map[string]interface{}{
		"student_id": std.ID,
		"updated":    len(result.Updated),
		"deleted":    len(result.Deleted),
		"skipped":    len(result.Skipped),
	})
	return result, nil
}

// StudentSummary tallies the weekly hours of a student's active assignments per class session.
func (svc *Service) StudentSummary(ctx context.Context, identifier string) (Summary, error) {
	std, err := svc.resolver.Student(ctx, identifier)
	if err != nil {
		return Summary{}, err
	}
	asgs, err := svc.repo.QueryAssignments(
		ctx,
		&QueryFilter{StudentID: std.ID},
		[]core.DBOrdering{{Field: "id", Ascending: true}},
	)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying student assignments")
	}

	sum := Summary{
		StudentName:  std.FullName(),
		ASUrite:      std.ASUrite,
		StudentID:    std.ID,
		SessionHours: make(map[string]int, len(Sessions)),
		Assignments:  make([]SummaryLine, 0, len(asgs)),
	}
	for _, s := range Sessions {
		sum.SessionHours[s] = 0
	}
	if len(asgs) > 0 {
		sum.Position = asgs[0].Position
		sum.FultonFellow = asgs[0].FultonFellow
		sum.EducationLevel = asgs[0].EducationLevel
	}
	for _, asg := range asgs {
		var hours int
		if asg.WeeklyHours != nil {
			hours = *asg.WeeklyHours
		}
		session := strings.ToUpper(strings.TrimSpace(asg.ClassSession))
		if _, ok := sum.SessionHours[session]; ok {
			sum.SessionHours[session] += hours
		}
		sum.TotalHours += hours
		sum.Assignments = append(sum.Assignments, SummaryLine{
			ID:             asg.ID,
			Position:       asg.Position,
			WeeklyHours:    asg.WeeklyHours,
			ClassSession:   asg.ClassSession,
			Subject:        asg.Subject,
			CatalogNum:     asg.CatalogNum,
			ClassNum:       asg.ClassNum,
			InstructorName: asg.InstructorName(),
			AcadCareer:     asg.AcadCareer,
		})
	}
	return sum, nil
}

// TotalHours sums the weekly hours of a student's active assignments.
func (svc *Service) TotalHours(ctx context.Context, studentID int) (int, error) {
	asgs, err := svc.repo.QueryAssignments(ctx, &QueryFilter{StudentID: studentID}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying student assignments")
	}
	var total int
	for _, asg := range asgs {
		if asg.WeeklyHours != nil {
			total += *asg.WeeklyHours
		}
	}
	return total, nil
}
