package directory

import "strings"

// Student is a Student Directory entry.
type Student struct {
	ID            int      `json:"student_id"`
	ASUrite       string   `json:"asurite"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Email         string   `json:"email"`
	Degree        string   `json:"degree"` // education level: MS, PHD, ...
	CurrentGPA    *float64 `json:"cur_gpa"`
	CumulativeGPA *float64 `json:"cum_gpa"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Class is a Class Catalog entry, unique per (ClassNum, Term).
type Class struct {
	ClassNum            string `json:"class_num"`
	Term                string `json:"term"`
	Subject             string `json:"subject"`
	CatalogNum          *int   `json:"catalog_num"`
	SectionNum          string `json:"section_num"`
	Title               string `json:"title"`
	Session             string `json:"session"`
	InstructorID        *int   `json:"instructor_id"`
	InstructorFirstName string `json:"instructor_first_name"`
	InstructorLastName  string `json:"instructor_last_name"`
	InstructorEmail     string `json:"instructor_email"`
	Location            string `json:"location"`
	Campus              string `json:"campus"`
	AcadCareer          string `json:"acad_career"`
}
