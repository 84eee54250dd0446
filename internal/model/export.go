package model

import "time"

// PrescriptionExport is the top-level JSON structure written by --format json.
type PrescriptionExport struct {
	RunID         string         `json:"run_id"`
	Quiz          string         `json:"quiz"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Concepts      []ConceptSpec  `json:"concepts"`
	Template      Prescription   `json:"template"`
	Prescriptions []Prescription `json:"prescriptions"`
}
