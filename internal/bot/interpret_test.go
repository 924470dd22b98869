package bot

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"gmatbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	in, err := NewInterpreter("", testLogger())
	if err != nil {
		t.Fatalf("new interpreter: %v", err)
	}
	return in
}

func TestInterpret_CaseAndWhitespaceInsensitive(t *testing.T) {
	in := newTestInterpreter(t)

	for _, text := range []string{"ps", " PS ", "Ps", "\tps\n"} {
		cat, ok := in.Interpret(text)
		if !ok || cat != domain.CategoryProblemSolving {
			t.Fatalf("Interpret(%q) = (%q, %v), expected Problem Solving", text, cat, ok)
		}
	}
}

func TestInterpret_ShortAndLongForms(t *testing.T) {
	in := newTestInterpreter(t)

	cases := map[string]domain.Category{
		"ds":                  domain.CategoryDataSufficiency,
		"Data Sufficiency":    domain.CategoryDataSufficiency,
		"cr":                  domain.CategoryCriticalReasoning,
		"critical reasoning":  domain.CategoryCriticalReasoning,
		"sc":                  domain.CategorySentenceCorrection,
		"Sentence  Correction": domain.CategorySentenceCorrection,
	}
	for text, want := range cases {
		cat, ok := in.Interpret(text)
		if !ok || cat != want {
			t.Fatalf("Interpret(%q) = (%q, %v), expected %q", text, cat, ok, want)
		}
	}
}

func TestInterpret_AnyIsRecognized(t *testing.T) {
	in := newTestInterpreter(t)

	for _, text := range []string{"any", "random"} {
		cat, ok := in.Interpret(text)
		if !ok {
			t.Fatalf("Interpret(%q) should be recognized", text)
		}
		if cat != domain.CategoryUnknown {
			t.Fatalf("Interpret(%q) = %q, expected the any-category request", text, cat)
		}
	}
}

func TestInterpret_FirstTokenFallback(t *testing.T) {
	in := newTestInterpreter(t)

	cat, ok := in.Interpret("ps please")
	if !ok || cat != domain.CategoryProblemSolving {
		t.Fatalf("Interpret(\"ps please\") = (%q, %v)", cat, ok)
	}
}

func TestInterpret_Unrecognized(t *testing.T) {
	in := newTestInterpreter(t)

	for _, text := range []string{"", "   ", "xyz", "rc", "help me out"} {
		if _, ok := in.Interpret(text); ok {
			t.Fatalf("Interpret(%q) should not be recognized", text)
		}
	}
}

func TestInterpret_Deterministic(t *testing.T) {
	in := newTestInterpreter(t)

	first, okFirst := in.Interpret("xyz")
	for i := 0; i < 10; i++ {
		cat, ok := in.Interpret("xyz")
		if cat != first || ok != okFirst {
			t.Fatal("interpretation must be deterministic")
		}
	}
}

func TestNewInterpreter_AliasFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	content := "quant: PS\ntoan: ps\nbroken: XX\nps: DS\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write alias file: %v", err)
	}

	in, err := NewInterpreter(path, testLogger())
	if err != nil {
		t.Fatalf("new interpreter: %v", err)
	}

	if cat, ok := in.Interpret("quant"); !ok || cat != domain.CategoryProblemSolving {
		t.Fatalf("file alias not loaded: (%q, %v)", cat, ok)
	}
	if cat, ok := in.Interpret("toan"); !ok || cat != domain.CategoryProblemSolving {
		t.Fatalf("category codes should be case-insensitive: (%q, %v)", cat, ok)
	}
	if _, ok := in.Interpret("broken"); ok {
		t.Fatal("alias with unknown category code should be skipped")
	}
	// File entries override built-ins.
	if cat, _ := in.Interpret("ps"); cat != domain.CategoryDataSufficiency {
		t.Fatalf("file alias should override built-in, got %q", cat)
	}
}

func TestNewInterpreter_MissingAliasFileIsFine(t *testing.T) {
	in, err := NewInterpreter(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	if err != nil {
		t.Fatalf("missing alias file should not fail: %v", err)
	}
	if cat, ok := in.Interpret("ds"); !ok || cat != domain.CategoryDataSufficiency {
		t.Fatalf("built-in aliases missing: (%q, %v)", cat, ok)
	}
}

func TestNewInterpreter_MalformedAliasFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	if err := os.WriteFile(path, []byte("- not\n- a\n- mapping\n"), 0o644); err != nil {
		t.Fatalf("write alias file: %v", err)
	}
	if _, err := NewInterpreter(path, testLogger()); err == nil {
		t.Fatal("expected error for malformed alias file")
	}
}
