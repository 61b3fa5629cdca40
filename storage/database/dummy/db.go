package dummydb

import (
	"sync"

	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/directory"
)

type (
	DB struct {
		assignment *assignmentTable
		student    *studentTable
		class      *classTable
	}

	assignmentTable struct {
		sync.RWMutex
		table   map[int]*assignment.Assignment
		pkCount int
	}

	studentTable struct {
		sync.RWMutex
		table map[int]*directory.Student
	}

	classTable struct {
		sync.RWMutex
		table map[string]*directory.Class // classNum|term
	}
)

func Open() (*DB, error) {
	db := &DB{
		assignment: &assignmentTable{table: make(map[int]*assignment.Assignment)},
		student:    &studentTable{table: make(map[int]*directory.Student)},
		class:      &classTable{table: make(map[string]*directory.Class)},
	}
	return db, nil
}
