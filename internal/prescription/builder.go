// Package prescription builds per-student prescriptions from evaluation
// records, the concept grouping and an optional grade report.
package prescription

import (
	"fmt"

	"github.com/pavelanni/prescriber/internal/concept"
	"github.com/pavelanni/prescriber/internal/model"
)

// GradeSource supplies per-problem grade statuses. ok is false when the
// source has nothing for the problem.
type GradeSource interface {
	Status(sid, quiz, problem string) (status model.Status, ok bool)
}

// Builder assembles prescriptions. It holds only immutable inputs, so a single
// Builder may be used from many goroutines.
type Builder struct {
	Concepts concept.Grouping
	Quiz     string
	// Grades is optional. When set, it overrides the status of every problem
	// that the concept-level pass did not excuse.
	Grades GradeSource
	// Missing decides what happens to students with no evaluation record.
	Missing model.MissingPolicy
}

// ParseMissingPolicy validates a policy name.
func ParseMissingPolicy(s string) (model.MissingPolicy, error) {
	switch p := model.MissingPolicy(s); p {
	case model.MissingSkip, model.MissingAllMissed:
		return p, nil
	case "skip":
		return model.MissingSkip, nil
	}
	return "", fmt.Errorf("unknown missing-evaluation policy %q", s)
}

// Build returns the prescription for student. rec may be nil, in which case
// the Missing policy applies and ok reports whether a prescription was made.
func (b *Builder) Build(student model.StudentIdentity, rec *model.EvaluationRecord) (p model.Prescription, ok bool) {
	if rec == nil && b.Missing != model.MissingAllMissed {
		return model.Prescription{}, false
	}
	p = b.shell(student.FullName(), student.SID)
	for i := range p.Concepts {
		cp := &p.Concepts[i]
		if !conceptMissed(rec, i, cp.ID) {
			for j := range cp.Problems {
				cp.Problems[j].Status = model.StatusExcused
			}
			continue
		}
		if b.Grades == nil {
			continue
		}
		for j := range cp.Problems {
			if st, found := b.Grades.Status(student.SID, b.Quiz, cp.Problems[j].Name); found {
				cp.Problems[j].Status = st
			}
		}
	}
	return p, true
}

// Template returns the blank prescription used as a document layout
// reference: no student, every problem unmarked, no grade lookups.
func (b *Builder) Template() model.Prescription {
	return b.shell("", "")
}

func (b *Builder) shell(name, sid string) model.Prescription {
	p := model.Prescription{
		QuizName:    b.Quiz,
		StudentName: name,
		StudentID:   sid,
		Concepts:    make([]model.ConceptPrescription, b.Concepts.Len()),
	}
	for i := range p.Concepts {
		spec := b.Concepts.At(i)
		cp := model.ConceptPrescription{
			ID:       spec.ID,
			Problems: make([]model.ProblemPrescription, len(spec.Problems)),
		}
		for j, name := range spec.Problems {
			cp.Problems[j] = model.ProblemPrescription{Name: name, Status: model.StatusRequired}
		}
		p.Concepts[i] = cp
	}
	return p
}

// conceptMissed reports whether the concept at position i with identifier id
// was missed. A nil record, or one with no signal for the concept, counts as missed.
func conceptMissed(rec *model.EvaluationRecord, i int, id string) bool {
	if rec == nil {
		return true
	}
	var missed, ok bool
	if rec.Labeled {
		missed, ok = rec.MissedConcept(id)
	} else {
		missed, ok = rec.MissedAt(i)
	}
	return missed || !ok
}
