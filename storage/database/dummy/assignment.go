package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment}
}

func (repo *assignmentRepository) insert(asg assignment.Assignment) assignment.Assignment {
	repo.db.pkCount++
	asg.ID = repo.db.pkCount
	repo.db.table[asg.ID] = &asg
	return asg
}

func (repo *assignmentRepository) hasActive(lineageID uuid.UUID, exclude int) bool {
	for _, asg := range repo.db.table {
		if asg.LineageID == lineageID && asg.ID != exclude && asg.IsActive() {
			return true
		}
	}
	return false
}

func (repo *assignmentRepository) CreateAssignments(_ context.Context, asgs []assignment.Assignment) ([]assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	seen := make(map[uuid.UUID]struct{}, len(asgs))
	for _, asg := range asgs {
		if _, ok := seen[asg.LineageID]; ok || repo.hasActive(asg.LineageID, 0) {
			return nil, assignment.ErrConflict
		}
		seen[asg.LineageID] = struct{}{}
	}

	created := make([]assignment.Assignment, 0, len(asgs))
	for _, asg := range asgs {
		created = append(created, repo.insert(asg))
	}
	return created, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id int) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if asg, ok := repo.db.table[id]; ok {
		return *asg, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter *assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	asgs := make([]assignment.Assignment, 0, len(repo.db.table))
	for _, asg := range repo.db.table {
		if matches(*asg, filter) {
			asgs = append(asgs, *asg)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "id", Ascending: true}}
	}
	sort.SliceStable(asgs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(asgs[i], asgs[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return asgs, nil
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[asg.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	if !orig.IsActive() || orig.Version != asg.Version {
		return assignment.Assignment{}, assignment.ErrConflict
	}

	// lineage, status & creation stamp are owned by the ledger
	asg.LineageID = orig.LineageID
	asg.EditStatus = orig.EditStatus
	asg.CreatedAt = orig.CreatedAt
	asg.Version = orig.Version + 1
	repo.db.table[asg.ID] = &asg
	return asg, nil
}

func (repo *assignmentRepository) Supersede(_ context.Context, original, successor assignment.Assignment) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[original.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	if !orig.IsActive() || orig.Version != original.Version {
		return assignment.Assignment{}, assignment.ErrConflict
	}

	orig.EditStatus = assignment.StatusEdited
	orig.UpdatedAt = successor.CreatedAt

	successor.LineageID = orig.LineageID
	successor.EditStatus = assignment.StatusActive
	return repo.insert(successor), nil
}

func (repo *assignmentRepository) MarkDeleted(_ context.Context, ids ...int) ([]int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	deleted := make([]int, 0, len(ids))
	for _, id := range ids {
		if asg, ok := repo.db.table[id]; ok && asg.IsActive() {
			asg.EditStatus = assignment.StatusDeleted
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func matches(asg assignment.Assignment, filter *assignment.QueryFilter) bool {
	if filter == nil {
		return asg.IsActive()
	}
	if !filter.IncludeHistory && !asg.IsActive() {
		return false
	}
	if filter.StudentID != 0 && asg.StudentID != filter.StudentID {
		return false
	}
	if filter.Term != "" && asg.Term != filter.Term {
		return false
	}
	if filter.ClassNum != "" && asg.ClassNum != filter.ClassNum {
		return false
	}
	if filter.Position != "" && !strings.EqualFold(asg.Position, filter.Position) {
		return false
	}
	if filter.InstructorID != 0 && (asg.InstructorID == nil || *asg.InstructorID != filter.InstructorID) {
		return false
	}
	if filter.LineageID != uuid.Nil && asg.LineageID != filter.LineageID {
		return false
	}
	return true
}

// compare supports the orderable columns of the sql store.
func compare(a, b assignment.Assignment, field string) int {
	cmpInt := func(x, y int) int {
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	}
	deref := func(i *int) int {
		if i == nil {
			return 0
		}
		return *i
	}

	switch field {
	case "id":
		return cmpInt(a.ID, b.ID)
	case "version":
		return cmpInt(a.Version, b.Version)
	case "student_id":
		return cmpInt(a.StudentID, b.StudentID)
	case "weekly_hours":
		return cmpInt(deref(a.WeeklyHours), deref(b.WeeklyHours))
	case "position":
		return strings.Compare(a.Position, b.Position)
	case "class_num":
		return strings.Compare(a.ClassNum, b.ClassNum)
	case "term":
		return strings.Compare(a.Term, b.Term)
	case "compensation":
		return a.Compensation.Cmp(b.Compensation)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}
