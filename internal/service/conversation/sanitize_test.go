package conversation

import (
	"strings"
	"testing"
)

func TestSanitizeStarterStripsBrackets(t *testing.T) {
	got := SanitizeStarter("Hello there! [smiles warmly and waits for input", "Echo")
	if got != "Hello there!" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestSanitizeStarterStripsDirectives(t *testing.T) {
	got := SanitizeStarter("Welcome back, friend. *(DO NOT RESPOND, AWAIT USER)*", "Echo")
	if got != "Welcome back, friend." {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestSanitizeStarterStripsMetaAnalysis(t *testing.T) {
	got := SanitizeStarter("Good evening. This response fulfills the greeting requirement.", "Echo")
	if got != "Good evening." {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestSanitizeStarterFallsBackWhenEmpty(t *testing.T) {
	got := SanitizeStarter("[only meta commentary]", "Mara")
	if got != FallbackStarter("Mara") {
		t.Fatalf("expected fallback, got %q", got)
	}
	if !strings.Contains(got, "Mara") {
		t.Fatalf("fallback must name the character: %q", got)
	}
}

func TestSanitizeStarterFallsBackOnResidualInstructions(t *testing.T) {
	got := SanitizeStarter("As an AI language model I will now greet you.", "Echo")
	if got != FallbackStarter("Echo") {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestSanitizeStarterKeepsCleanText(t *testing.T) {
	clean := "Quiet hour. Good time for the questions that don't fit anywhere else."
	if got := SanitizeStarter(clean, "Mara"); got != clean {
		t.Fatalf("clean text must pass through, got %q", got)
	}
}
