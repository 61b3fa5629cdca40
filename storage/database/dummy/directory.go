package dummydb

import (
	"context"
	"strings"

	"github.com/trezcool/stipend/core/directory"
)

// DirectoryRepository serves the student directory and the class catalog from memory.
// Add* methods seed them, the lookups are read-only.
type DirectoryRepository struct {
	students *studentTable
	classes  *classTable
}

var _ directory.Repository = (*DirectoryRepository)(nil) // interface compliance check

func NewDirectoryRepository(db *DB) *DirectoryRepository {
	return &DirectoryRepository{students: db.student, classes: db.class}
}

func (repo *DirectoryRepository) AddStudents(stds ...directory.Student) {
	repo.students.Lock()
	defer repo.students.Unlock()
	for _, std := range stds {
		std := std
		repo.students.table[std.ID] = &std
	}
}

func (repo *DirectoryRepository) AddClasses(classes ...directory.Class) {
	repo.classes.Lock()
	defer repo.classes.Unlock()
	for _, cls := range classes {
		cls := cls
		repo.classes.table[cls.ClassNum+"|"+cls.Term] = &cls
	}
}

func (repo *DirectoryRepository) GetStudentByID(_ context.Context, id int) (directory.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	if std, ok := repo.students.table[id]; ok {
		return *std, nil
	}
	return directory.Student{}, directory.ErrStudentNotFound
}

func (repo *DirectoryRepository) GetStudentByAlias(_ context.Context, alias string) (directory.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	for _, std := range repo.students.table {
		if std.ASUrite != "" && strings.EqualFold(std.ASUrite, alias) {
			return *std, nil
		}
	}
	return directory.Student{}, directory.ErrStudentNotFound
}

func (repo *DirectoryRepository) GetClass(_ context.Context, classNum, term string) (directory.Class, error) {
	repo.classes.RLock()
	defer repo.classes.RUnlock()

	if cls, ok := repo.classes.table[classNum+"|"+term]; ok {
		return *cls, nil
	}
	return directory.Class{}, directory.ErrClassNotFound
}
