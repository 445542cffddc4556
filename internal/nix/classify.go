package nix

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind identifies one failure mode of the external nix tool.
type ErrorKind int

const (
	// KindGenericFailure is any non-zero exit that matched no rule.
	KindGenericFailure ErrorKind = iota
	KindInsecurePackage
	KindBrokenPackage
	KindNotAvailableOnHostPlatform
	KindAttributeNotProvided
	KindUnfreeLicence
	KindStillAlive
	KindPackageNotInstalled
)

func (k ErrorKind) String() string {
	switch k {
	case KindInsecurePackage:
		return "insecure package"
	case KindBrokenPackage:
		return "broken package"
	case KindNotAvailableOnHostPlatform:
		return "not available on host platform"
	case KindAttributeNotProvided:
		return "attribute not provided"
	case KindUnfreeLicence:
		return "unfree licence"
	case KindStillAlive:
		return "still alive"
	case KindPackageNotInstalled:
		return "package not installed"
	default:
		return "tool failure"
	}
}

// ToolError is one classified failure of a nix invocation. The raw stderr
// is carried for generic failures, where the kind alone says nothing.
type ToolError struct {
	Kind     ErrorKind
	Stderr   string
	ExitCode int
}

func (e *ToolError) Error() string {
	if e.Kind == KindGenericFailure {
		return fmt.Sprintf("nix: exit %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
	}
	return "nix: " + e.Kind.String()
}

// classifyRule maps a stderr marker to an error kind.
type classifyRule struct {
	marker string
	kind   ErrorKind
}

// classifyRules is ordered most specific first; the first match wins.
// Markers are taken verbatim from the tool's refusal messages, including
// its typographic quotes.
var classifyRules = []classifyRule{
	{"is marked as insecure, refusing to evaluate.", KindInsecurePackage},
	{"is marked as broken, refusing to evaluate.", KindBrokenPackage},
	{"is not available on the requested hostPlatform", KindNotAvailableOnHostPlatform},
	{"does not provide attribute", KindAttributeNotProvided},
	{"has an unfree license (‘unfree’), refusing to evaluate.", KindUnfreeLicence},
	{"since it is still alive", KindStillAlive},
}

// Classify turns a failed invocation into a ToolError by matching stderr
// against the rule table. An unmatched failure comes back as
// KindGenericFailure carrying the raw stderr.
func Classify(result *Result) *ToolError {
	for _, rule := range classifyRules {
		if strings.Contains(result.Stderr, rule.marker) {
			return &ToolError{Kind: rule.kind, Stderr: result.Stderr, ExitCode: result.ExitCode}
		}
	}
	return &ToolError{Kind: KindGenericFailure, Stderr: result.Stderr, ExitCode: result.ExitCode}
}

// KindOf extracts the classified kind from an error produced by this
// package. The second return is false for errors from elsewhere.
func KindOf(err error) (ErrorKind, bool) {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Kind, true
	}
	return KindGenericFailure, false
}
