package classify

import "testing"

func TestClassify_CleanRun(t *testing.T) {
	res := Classify("=== Exit code: 0 ===\nall good")

	if !res.Success {
		t.Error("expected success")
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", res.ExitCode)
	}
	if res.ErrorCount != 0 {
		t.Errorf("expected 0 error lines, got %d", res.ErrorCount)
	}
}

func TestClassify_NonzeroExitWithError(t *testing.T) {
	res := Classify("=== Exit code: 1 ===\nError: disk full")

	if res.Success {
		t.Error("expected failure")
	}
	if res.ExitCode == nil || *res.ExitCode != 1 {
		t.Errorf("expected exit code 1, got %v", res.ExitCode)
	}
	if res.ErrorCount != 1 {
		t.Fatalf("expected 1 error line, got %d", res.ErrorCount)
	}
	if res.ErrorLines[0] != "Error: disk full" {
		t.Errorf("expected verbatim error line, got %q", res.ErrorLines[0])
	}
}

func TestClassify_NoMarker(t *testing.T) {
	res := Classify("no marker at all")

	if res.Success {
		t.Error("expected failure without a marker")
	}
	if res.ExitCode != nil {
		t.Errorf("expected nil exit code, got %d", *res.ExitCode)
	}
}

// A script that exits 0 but prints a filtered keyword is classified as
// unsuccessful. This is deliberate; remediation flows depend on it.
func TestClassify_ZeroExitWithWarningIsFailure(t *testing.T) {
	res := Classify("=== Exit code: 0 ===\nWarning: deprecated flag")

	if res.Success {
		t.Error("conservative rule: warning line must fail the run")
	}
	if res.ExitCode == nil || *res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", res.ExitCode)
	}
	if res.ErrorCount != 1 {
		t.Errorf("expected 1 matching line, got %d", res.ErrorCount)
	}
}

func TestClassify_MarkerCaseInsensitive(t *testing.T) {
	res := Classify("=== exit CODE: 7 ===")

	if res.ExitCode == nil || *res.ExitCode != 7 {
		t.Errorf("expected exit code 7, got %v", res.ExitCode)
	}
}

func TestClassify_TokensCaseInsensitiveAndOrdered(t *testing.T) {
	out := "=== Exit code: 2 ===\nFATAL: boom\nsome ok line\naccess DENIED here\nan Exception occurred"
	res := Classify(out)

	if res.ErrorCount != 3 {
		t.Fatalf("expected 3 matching lines, got %d: %v", res.ErrorCount, res.ErrorLines)
	}
	want := []string{"FATAL: boom", "access DENIED here", "an Exception occurred"}
	for i, line := range want {
		if res.ErrorLines[i] != line {
			t.Errorf("line %d: expected %q, got %q", i, line, res.ErrorLines[i])
		}
	}
}

func TestClassify_NegativeExitCode(t *testing.T) {
	res := Classify("=== Exit code: -1 ===")

	if res.ExitCode == nil || *res.ExitCode != -1 {
		t.Errorf("expected exit code -1, got %v", res.ExitCode)
	}
	if res.Success {
		t.Error("expected failure")
	}
}

func TestClassify_EmptyInput(t *testing.T) {
	res := Classify("")

	if res.Success || res.ExitCode != nil || res.ErrorCount != 0 {
		t.Errorf("expected zero verdict, got %+v", res)
	}
}
