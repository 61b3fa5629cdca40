package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/trezcool/stipend/core"
	"github.com/trezcool/stipend/core/assignment"
	"github.com/trezcool/stipend/core/directory"
	"github.com/trezcool/stipend/core/valuation"
	dummydb "github.com/trezcool/stipend/storage/database/dummy"
)

const ActiveTerm = "2254"

// directory fixtures
var (
	StudentJane = directory.Student{
		ID:            12345,
		ASUrite:       "jdoe1",
		FirstName:     "Jane",
		LastName:      "Doe",
		Email:         "jdoe1@asu.edu",
		Degree:        "MS",
		CurrentGPA:    floatPtr(3.8),
		CumulativeGPA: floatPtr(3.7),
	}
	StudentAmir = directory.Student{
		ID:            67890,
		ASUrite:       "asmith2",
		FirstName:     "Amir",
		LastName:      "Smith",
		Email:         "asmith2@asu.edu",
		Degree:        "PHD",
		CurrentGPA:    floatPtr(3.95),
		CumulativeGPA: floatPtr(3.9),
	}

	// UGRD class on the Tempe campus, session A
	ClassCSE310 = directory.Class{
		ClassNum:            "70001",
		Term:                ActiveTerm,
		Subject:             "CSE",
		CatalogNum:          intPtr(310),
		SectionNum:          "1001",
		Title:               "Data Structures and Algorithms",
		Session:             "A",
		InstructorID:        intPtr(900001),
		InstructorFirstName: "Ada",
		InstructorLastName:  "Lovelace",
		InstructorEmail:     "ada@asu.edu",
		Location:            "TEMPE",
		Campus:              "TEMPE",
		AcadCareer:          valuation.CareerUndergrad,
	}
	// GRAD class on the Tempe campus, session C
	ClassCSE598 = directory.Class{
		ClassNum:            "70002",
		Term:                ActiveTerm,
		Subject:             "CSE",
		CatalogNum:          intPtr(598),
		SectionNum:          "2001",
		Title:               "Special Topics",
		Session:             "C",
		InstructorID:        intPtr(900002),
		InstructorFirstName: "Alan",
		InstructorLastName:  "Turing",
		InstructorEmail:     "alan@asu.edu",
		Location:            "TEMPE",
		Campus:              "TEMPE",
		AcadCareer:          valuation.CareerGrad,
	}
	// UGRD online class, session B
	ClassEEE202 = directory.Class{
		ClassNum:            "70003",
		Term:                ActiveTerm,
		Subject:             "EEE",
		CatalogNum:          intPtr(202),
		SectionNum:          "3001",
		Title:               "Circuits I",
		Session:             "B",
		InstructorID:        intPtr(900001),
		InstructorFirstName: "Ada",
		InstructorLastName:  "Lovelace",
		Location:            "ICOURSE",
		Campus:              "TEMPE",
		AcadCareer:          valuation.CareerUndergrad,
	}
)

func intPtr(i int) *int { return &i }

func floatPtr(f float64) *float64 { return &f }

// SeedDirectory loads the directory fixtures.
func SeedDirectory(repo *dummydb.DirectoryRepository) {
	repo.AddStudents(StudentJane, StudentAmir)
	repo.AddClasses(ClassCSE310, ClassCSE598, ClassEEE202)
}

// Logger is a core.Logger keeping the messages logged per level.
type Logger struct {
	mu      sync.Mutex
	entries map[string][]string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger() *Logger {
	return &Logger{entries: make(map[string][]string)}
}

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[level] = append(l.entries[level], msg)
}

func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]string, len(l.entries[level]))
	copy(msgs, l.entries[level])
	return msgs
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

// Env is a fully wired in-memory service stack.
type Env struct {
	DB        *dummydb.DB
	Directory *dummydb.DirectoryRepository
	Resolver  *directory.Resolver
	Engine    *valuation.Engine
	Logger    *Logger
	Service   *assignment.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	dirRepo := dummydb.NewDirectoryRepository(db)
	SeedDirectory(dirRepo)

	env := &Env{
		DB:        db,
		Directory: dirRepo,
		Resolver:  directory.NewResolver(dirRepo),
		Engine:    valuation.NewEngine(valuation.DefaultRules()),
		Logger:    NewLogger(),
	}
	env.Service, err = assignment.NewService(dummydb.NewAssignmentRepository(db), env.Resolver, env.Engine, env.Logger)
	if err != nil {
		t.Fatalf("assignment.NewService() failed: %v", err)
	}
	return env
}

// CreateAssignment stores an active assignment of `std` on `cls`.
func CreateAssignment(t *testing.T, env *Env, std directory.Student, cls directory.Class, position string, hours int) assignment.Assignment {
	t.Helper()

	asg := assignment.Assignment{
		Position:     position,
		WeeklyHours:  intPtr(hours),
		FultonFellow: "No",
	}
	asg.ApplyStudent(std)
	asg.ApplyClass(cls)
	created, err := env.Service.CreateBatch(context.Background(), []assignment.Assignment{asg})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return created[0]
}
