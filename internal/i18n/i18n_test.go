package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTemplateDataEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ConceptN", map[string]any{"ID": "3"})
	if got != "Concept 3" {
		t.Errorf("Td(ConceptN) = %q, want 'Concept 3'", got)
	}

	got = Td(ctx, "QuizPrescriptions", map[string]any{"Quiz": "Quiz 1"})
	if got != "Quiz 1 prescriptions" {
		t.Errorf("Td(QuizPrescriptions) = %q, want 'Quiz 1 prescriptions'", got)
	}
}

func TestTemplateDataRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := Td(ctx, "ConceptN", map[string]any{"ID": "3"})
	if got != "Тема 3" {
		t.Errorf("Td(ConceptN) = %q, want 'Тема 3'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "StudentsBuilt", 1); got != "1 prescription built." {
		t.Errorf("Tp(StudentsBuilt, 1) = %q", got)
	}
	if got := Tp(ctx, "StudentsBuilt", 5); got != "5 prescriptions built." {
		t.Errorf("Tp(StudentsBuilt, 5) = %q", got)
	}
}

func TestTranslateFallsBackToEnglish(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}
	if got := T(context.Background(), "SummaryStudents"); got != "Students" {
		t.Errorf("T(SummaryStudents) = %q, want 'Students'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInitRejectsBadTag(t *testing.T) {
	if err := Init("not a language!"); err == nil {
		t.Error("expected error for invalid language tag")
	}
}

func TestTranslateWithoutLanguageUsesDefault(t *testing.T) {
	if err := Init("ru"); err != nil {
		t.Fatal(err)
	}
	if got := T(context.Background(), "SummaryStudents"); got != "Студенты" {
		t.Errorf("T(SummaryStudents) = %q, want 'Студенты'", got)
	}
}
