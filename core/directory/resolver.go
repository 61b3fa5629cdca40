package directory

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/stipend/core"
)

var (
	// errors
	ErrStudentNotFound = errors.New("student not found")
	ErrClassNotFound   = errors.New("class not found")
)

type (
	// Repository is the read-only lookup surface of the Student Directory and the Class Catalog.
	Repository interface {
		GetStudentByID(ctx context.Context, id int) (Student, error)
		// GetStudentByAlias matches the alias (ASUrite) case-insensitively.
		GetStudentByAlias(ctx context.Context, alias string) (Student, error)
		GetClass(ctx context.Context, classNum, term string) (Class, error)
	}

	// Resolver turns external identifiers into directory entries.
	Resolver struct {
		repo Repository
	}
)

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Student resolves `identifier` as a student id when it parses as an integer, as an alias otherwise.
func (r *Resolver) Student(ctx context.Context, identifier string) (Student, error) {
	identifier = core.CleanString(identifier)
	if identifier == "" {
		return Student{}, ErrStudentNotFound
	}
	if id, err := strconv.Atoi(identifier); err == nil {
		return r.repo.GetStudentByID(ctx, id)
	}
	return r.repo.GetStudentByAlias(ctx, core.CleanString(identifier, true /* lower */))
}

// StudentByID skips identifier parsing, for callers holding a Student_ID already.
func (r *Resolver) StudentByID(ctx context.Context, id int) (Student, error) {
	return r.repo.GetStudentByID(ctx, id)
}

// Class resolves a class number within a term.
func (r *Resolver) Class(ctx context.Context, classNum, term string) (Class, error) {
	classNum = core.CleanString(classNum)
	if classNum == "" {
		return Class{}, ErrClassNotFound
	}
	return r.repo.GetClass(ctx, classNum, core.CleanString(term))
}
