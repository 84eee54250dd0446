package evaluation

import (
	"fmt"
	"strings"
)

// Header names of the evaluation export.
const (
	ColFirstName      = "First Name"
	ColLastName       = "Last Name"
	ColSID            = "SID"
	ColSubmissionTime = "Submission Time"
	ColAdjustment     = "Adjustment"
)

// schema is the header-to-index mapping, resolved once per table.
// Rubric flags live in columns [blockStart, blockEnd).
type schema struct {
	firstName  int
	lastName   int
	sid        int
	blockStart int
	blockEnd   int
	labels     []columnLabel
}

type columnLabel struct {
	column int
	label  Label
}

// width is the minimum row length that covers every column the schema reads.
func (s *schema) width() int {
	w := max(s.firstName, s.lastName, s.sid, s.blockEnd-1)
	return w + 1
}

func resolveSchema(header []string) (*schema, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	lookup := func(name string) (int, error) {
		i, ok := idx[name]
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		return i, nil
	}

	var s schema
	var err error
	if s.firstName, err = lookup(ColFirstName); err != nil {
		return nil, err
	}
	if s.lastName, err = lookup(ColLastName); err != nil {
		return nil, err
	}
	if s.sid, err = lookup(ColSID); err != nil {
		return nil, err
	}
	submitted, err := lookup(ColSubmissionTime)
	if err != nil {
		return nil, err
	}
	if s.blockEnd, err = lookup(ColAdjustment); err != nil {
		return nil, err
	}
	s.blockStart = submitted + 1
	if s.blockEnd < s.blockStart {
		return nil, fmt.Errorf("%w: %q precedes %q", ErrMissingColumn, ColAdjustment, ColSubmissionTime)
	}

	for i := s.blockStart; i < s.blockEnd; i++ {
		if l, ok := ParseLabel(header[i]); ok {
			s.labels = append(s.labels, columnLabel{column: i, label: l})
		}
	}
	return &s, nil
}

// Label is the structured form of a rubric column header such as
// "Concept 3: Limits: evaluates a one-sided limit".
type Label struct {
	ID     string
	Title  string
	Detail string
}

// ParseLabel parses a concept-tagged header. The "concept" keyword is case
// insensitive and must be followed by whitespace and an identifier; title
// and detail are optional. The identifier is the first word, so in
// "Concept 3 Limits: one-sided" the words after it form the title and the
// text after the colon is the detail.
func ParseLabel(header string) (Label, bool) {
	h := strings.TrimSpace(header)
	const kw = "concept"
	if len(h) <= len(kw) || !strings.EqualFold(h[:len(kw)], kw) {
		return Label{}, false
	}
	rest := h[len(kw):]
	if rest[0] != ' ' && rest[0] != '\t' {
		return Label{}, false
	}
	rest = strings.TrimSpace(rest)

	head, tail, _ := strings.Cut(rest, ":")
	words := strings.Fields(head)
	if len(words) == 0 {
		return Label{}, false
	}
	id := words[0]
	var title, detail string
	if len(words) > 1 {
		title, detail = strings.Join(words[1:], " "), tail
	} else {
		title, detail, _ = strings.Cut(tail, ":")
	}
	return Label{
		ID:     id,
		Title:  strings.TrimSpace(title),
		Detail: strings.TrimSpace(detail),
	}, true
}

// parseFlag reports whether a rubric cell is checked.
func parseFlag(cell string) bool {
	return strings.EqualFold(strings.TrimSpace(cell), "true")
}

var metadataRows = map[string]bool{
	"Point Values":   true,
	"Rubric Numbers": true,
	"Rubric Type":    true,
}

// isNonData reports rows that carry rubric metadata or nothing at all.
func isNonData(row []string) bool {
	if len(row) == 0 {
		return true
	}
	if metadataRows[strings.TrimSpace(row[0])] {
		return true
	}
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
