package model

// Status marks a single problem on a prescription.
type Status string

const (
	// StatusRequired is the unmarked state: the concept was missed and the problem must be done.
	StatusRequired Status = ""
	// StatusExcused marks a problem whose concept was not missed.
	StatusExcused Status = "X"
	// StatusEarned is a grade-report score greater than zero.
	StatusEarned Status = "Y"
	// StatusNotEarned is a grade-report score of exactly zero.
	StatusNotEarned Status = "N"
	// StatusSubmitted is an empty grade-report cell: submitted, not graded yet.
	StatusSubmitted Status = "S"
	// StatusUnknown is a grade-report cell that could not be interpreted.
	StatusUnknown Status = "?"
)

// MissingPolicy decides what the builder does for a student with no evaluation record.
type MissingPolicy string

const (
	// MissingSkip emits no prescription for the student. It is the zero value.
	MissingSkip MissingPolicy = ""
	// MissingAllMissed treats every concept as missed.
	MissingAllMissed MissingPolicy = "all-missed"
)

// ConceptSpec is a caller-declared concept and its ordered problems.
type ConceptSpec struct {
	ID       string   `json:"id"`
	Problems []string `json:"problems"`
}

// StudentIdentity identifies a student across the evaluation export and the grade report.
// SID is always in normalized form.
type StudentIdentity struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	SID       string `json:"sid"`
}

// FullName returns "First Last".
func (s StudentIdentity) FullName() string {
	switch {
	case s.FirstName == "":
		return s.LastName
	case s.LastName == "":
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// EvaluationRecord holds one student's rubric outcomes.
//
// Flags are the boolean cells of the rubric block in column order and drive
// positional addressing. ConceptFlags holds, per concept identifier, the
// flag of every labeled column tagged with that identifier.
type EvaluationRecord struct {
	Student      StudentIdentity
	Flags        []bool
	ConceptFlags map[string][]bool
	Labeled      bool
}

// MissedAt reports the positional flag for the concept at index i.
// ok is false when the block has no column at that position.
func (r *EvaluationRecord) MissedAt(i int) (missed, ok bool) {
	if i < 0 || i >= len(r.Flags) {
		return false, false
	}
	return r.Flags[i], true
}

// MissedConcept reports whether any column tagged with id was true.
// ok is false when no column carries the identifier.
func (r *EvaluationRecord) MissedConcept(id string) (missed, ok bool) {
	flags, ok := r.ConceptFlags[id]
	if !ok {
		return false, false
	}
	for _, f := range flags {
		if f {
			return true, true
		}
	}
	return false, true
}

// MissedConcepts returns the identifiers flagged as missed, in the given order.
func (r *EvaluationRecord) MissedConcepts(specs []ConceptSpec) []string {
	var out []string
	for i, c := range specs {
		var missed, ok bool
		if r.Labeled {
			missed, ok = r.MissedConcept(c.ID)
		} else {
			missed, ok = r.MissedAt(i)
		}
		if missed || !ok {
			out = append(out, c.ID)
		}
	}
	return out
}

// GradeReportRecord holds one student's raw grade-report cells keyed by column label.
type GradeReportRecord struct {
	Student StudentIdentity
	Scores  map[string]string
}

// ProblemPrescription is a single problem with its marking.
type ProblemPrescription struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// ConceptPrescription lists the problems of one concept in declared order.
type ConceptPrescription struct {
	ID       string                `json:"id"`
	Problems []ProblemPrescription `json:"problems"`
}

// Prescription is the per-student remediation record handed to rendering.
// StudentName and StudentID are empty for the blank template.
type Prescription struct {
	QuizName    string                `json:"quiz_name"`
	StudentName string                `json:"student_name"`
	StudentID   string                `json:"student_id"`
	Concepts    []ConceptPrescription `json:"concepts"`
}

// IsTemplate reports whether p is the blank layout record.
func (p *Prescription) IsTemplate() bool {
	return p.StudentName == "" && p.StudentID == ""
}
