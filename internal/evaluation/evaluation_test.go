package evaluation

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const positionalCSV = `First Name,Last Name,SID,Email,Submission Time,1: Limits,2: Derivatives,3: Integrals,Adjustment,Comments
Point Values,,,,,1,1,1,,
Rubric Type,,,,,CHECKBOX,CHECKBOX,CHECKBOX,,
Ann,Lee,100,ann@example.edu,2024-01-01,true,false,FALSE,0,
Bo,Chan,0200,bo@example.edu,2024-01-01,False,TRUE,true,0,
`

const labeledCSV = `First Name,Last Name,SID,Submission Time,Concept 1: Limits: one-sided,Concept 3: Integrals: by parts,concept 3: Integrals: substitution,Late,Adjustment
Ann,Lee,100,2024-01-01,false,false,true,true,0
Bo,Chan,200,2024-01-01,true,false,false,false,0
`

func parseString(t *testing.T, data string, mode Mode) *Evaluations {
	t.Helper()
	ev, err := Parse(strings.NewReader(data), mode)
	require.NoError(t, err)
	return ev
}

func TestParse_Positional(t *testing.T) {
	ev := parseString(t, positionalCSV, ModeAuto)

	assert.Equal(t, ModePositional, ev.Mode)
	assert.Empty(t, ev.Skipped, "metadata rows must be skipped silently")
	assert.Equal(t, []string{"100", "200"}, ev.SIDs())

	ann, ok := ev.Get("100")
	require.True(t, ok)
	assert.Equal(t, "Ann", ann.Student.FirstName)
	assert.Equal(t, "Lee", ann.Student.LastName)
	assert.Equal(t, []bool{true, false, false}, ann.Flags)
	assert.False(t, ann.Labeled)

	bo, ok := ev.Get("200")
	require.True(t, ok, "leading zeros are normalized away")
	assert.Equal(t, []bool{false, true, true}, bo.Flags)
}

func TestParse_LabeledUnion(t *testing.T) {
	ev := parseString(t, labeledCSV, ModeAuto)
	require.Equal(t, ModeLabeled, ev.Mode)
	require.Len(t, ev.Labels, 3)
	assert.Equal(t, Label{ID: "3", Title: "Integrals", Detail: "by parts"}, ev.Labels[1])

	ann, ok := ev.Get("100")
	require.True(t, ok)
	missed, found := ann.MissedConcept("3")
	assert.True(t, found)
	assert.True(t, missed, "one of two concept 3 columns is true")
	missed, _ = ann.MissedConcept("1")
	assert.False(t, missed)
	assert.Equal(t, []bool{false, false, true, true}, ann.Flags)

	bo, _ := ev.Get("200")
	missed, _ = bo.MissedConcept("3")
	assert.False(t, missed)
	missed, _ = bo.MissedConcept("1")
	assert.True(t, missed)
}

func TestParse_LabelWithoutColon(t *testing.T) {
	const data = `First Name,Last Name,SID,Submission Time,Concept 1 Limits,Concept 3 Integrals,Adjustment
Ann,Lee,100,2024-01-01,false,true,0
`
	ev := parseString(t, data, ModeLabeled)
	require.Len(t, ev.Labels, 2)
	assert.Equal(t, Label{ID: "3", Title: "Integrals"}, ev.Labels[1])

	ann, _ := ev.Get("100")
	missed, found := ann.MissedConcept("3")
	assert.True(t, found)
	assert.True(t, missed)
	missed, found = ann.MissedConcept("1")
	assert.True(t, found)
	assert.False(t, missed)
}

func TestParse_ForcedPositionalIgnoresLabels(t *testing.T) {
	ev := parseString(t, labeledCSV, ModePositional)
	assert.Equal(t, ModePositional, ev.Mode)
	assert.Empty(t, ev.Labels)
	ann, _ := ev.Get("100")
	assert.Nil(t, ann.ConceptFlags)
}

func TestParse_LabeledWithoutLabels(t *testing.T) {
	ev, err := Parse(strings.NewReader(positionalCSV), ModeLabeled)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Equal(t, 0, ev.Len())
}

func TestParse_SkipsMalformedRow(t *testing.T) {
	data := `First Name,Last Name,SID,Submission Time,A,Adjustment
Ann,Lee,100,t,true,0
Cy,Doe,,t,true,0
Bo,Chan,200,t,false,0
Di,Short,300
`
	ev := parseString(t, data, ModeAuto)

	assert.Equal(t, []string{"100", "200"}, ev.SIDs())
	_, ok := ev.Get("300")
	assert.False(t, ok)
	require.Len(t, ev.Skipped, 2)
	assert.Equal(t, 3, ev.Skipped[0].Line)
	assert.Contains(t, ev.Skipped[0].Error(), "missing SID")
	assert.Equal(t, 5, ev.Skipped[1].Line)
}

func TestParse_DuplicateSIDLastWins(t *testing.T) {
	data := `First Name,Last Name,SID,Submission Time,A,Adjustment
Ann,Lee,100,t,true,0
Bo,Chan,200,t,false,0
Ann,Lee,00100,t,false,0
`
	ev := parseString(t, data, ModeAuto)
	assert.Equal(t, []string{"100", "200"}, ev.SIDs())
	ann, _ := ev.Get("100")
	assert.Equal(t, []bool{false}, ann.Flags)
}

func TestParse_MissingRequiredHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		column string
	}{
		{"no SID", "First Name,Last Name,Submission Time,A,Adjustment", ColSID},
		{"no adjustment", "First Name,Last Name,SID,Submission Time,A", ColAdjustment},
		{"no submission time", "First Name,Last Name,SID,A,Adjustment", ColSubmissionTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Parse(strings.NewReader(tt.header+"\nAnn,Lee,1,t,true\n"), ModeAuto)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingColumn))
			assert.Contains(t, err.Error(), tt.column)
			assert.Equal(t, 0, ev.Len())
		})
	}
}

func TestParse_BlockOrder(t *testing.T) {
	_, err := Parse(strings.NewReader("First Name,Last Name,SID,Adjustment,Submission Time\n"), ModeAuto)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParse_EmptyTable(t *testing.T) {
	ev, err := Parse(strings.NewReader(""), ModeAuto)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	require.NotNil(t, ev)
	assert.Equal(t, 0, ev.Len())
}

func TestParseFile_Unavailable(t *testing.T) {
	ev, err := ParseFile(filepath.Join(t.TempDir(), "nope.csv"), ModeAuto)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	require.NotNil(t, ev)
	assert.Empty(t, ev.SIDs())
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		in     string
		want   Label
		wantOK bool
	}{
		{"Concept 3: Limits: one-sided", Label{ID: "3", Title: "Limits", Detail: "one-sided"}, true},
		{"CONCEPT 12: Series", Label{ID: "12", Title: "Series"}, true},
		{"  concept 4  :  A : b: c ", Label{ID: "4", Title: "A", Detail: "b: c"}, true},
		{"concept 7", Label{ID: "7"}, true},
		{"Concepts 3: x", Label{}, false},
		{"Concept: x", Label{}, false},
		{"Concept", Label{}, false},
		{"Concept 3 Limits", Label{ID: "3", Title: "Limits"}, true},
		{"concept\t5  Power series: ratio test: x", Label{ID: "5", Title: "Power series", Detail: "ratio test: x"}, true},
		{"Concept :x", Label{}, false},
		{"1: Limits", Label{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLabel(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlag(t *testing.T) {
	for in, want := range map[string]bool{"true": true, "TRUE": true, " True ": true, "false": false, "1": false, "": false, "yes": false} {
		assert.Equal(t, want, parseFlag(in), "parseFlag(%q)", in)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "AUTO": ModeAuto, "positional": ModePositional, " labeled ": ModeLabeled} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("fuzzy")
	assert.Error(t, err)
}
