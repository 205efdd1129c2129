// Package classify turns captured run output into a structured verdict.
package classify

import (
	"regexp"
	"strings"
)

// exitCodePattern matches the marker line the entrypoint wrapper emits
// after the script finishes, e.g. "=== Exit code: 0 ===".
var exitCodePattern = regexp.MustCompile(`(?i)^\s*===\s*exit code:\s*(-?\d+)\s*===\s*$`)

// errorTokens are scanned case-insensitively on every output line.
var errorTokens = []string{"error", "exception", "failed", "fatal", "warning", "denied"}

// Result is the structured verdict derived from captured output.
type Result struct {
	Success    bool     `json:"success" doc:"True only when the exit code is 0 and no error-pattern lines were found"`
	ExitCode   *int     `json:"exit_code" doc:"Exit code from the wrapper's marker line; null when the marker is absent"`
	ErrorCount int      `json:"error_count" doc:"Number of lines matching an error pattern"`
	ErrorLines []string `json:"error_lines,omitempty" doc:"Matching lines, verbatim, in output order"`
}

// Classify parses captured text output into a Result. It never fails; if
// nothing is recognizable every field stays zero.
//
// The success rule is deliberately conservative: exit code 0 AND zero
// lines containing any error token. A script that exits 0 but prints the
// word "warning" is classified as unsuccessful. Remediation flows depend
// on this asymmetry (false negatives over false positives), so do not
// loosen the matching.
func Classify(output string) Result {
	res := Result{}

	for _, line := range strings.Split(output, "\n") {
		if res.ExitCode == nil {
			if m := exitCodePattern.FindStringSubmatch(line); m != nil {
				code := parseInt(m[1])
				res.ExitCode = &code
				continue
			}
		}

		lower := strings.ToLower(line)
		for _, token := range errorTokens {
			if strings.Contains(lower, token) {
				res.ErrorLines = append(res.ErrorLines, line)
				break
			}
		}
	}

	res.ErrorCount = len(res.ErrorLines)
	res.Success = res.ExitCode != nil && *res.ExitCode == 0 && res.ErrorCount == 0
	return res
}

// parseInt avoids strconv error plumbing; the regexp already guarantees
// an optional sign followed by digits.
func parseInt(s string) int {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	if neg {
		return -n
	}
	return n
}
