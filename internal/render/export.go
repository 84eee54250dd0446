package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/prescriber/internal/model"
)

// NewExport stamps a fresh run ID and time on the export envelope.
func NewExport(quiz string, concepts []model.ConceptSpec, template model.Prescription, ps []model.Prescription) model.PrescriptionExport {
	if ps == nil {
		ps = []model.Prescription{}
	}
	return model.PrescriptionExport{
		RunID:         uuid.NewString(),
		Quiz:          quiz,
		GeneratedAt:   time.Now().UTC(),
		Concepts:      concepts,
		Template:      template,
		Prescriptions: ps,
	}
}

// WriteJSON writes exp as indented JSON followed by a newline.
func WriteJSON(w io.Writer, exp model.PrescriptionExport) error {
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// WriteJSONFile writes exp to path, or to stdout when path is "-".
func WriteJSONFile(path string, exp model.PrescriptionExport) error {
	if path == "-" {
		return WriteJSON(os.Stdout, exp)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := WriteJSON(f, exp); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
