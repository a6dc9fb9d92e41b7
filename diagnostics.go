package tuner

import (
	"context"
	"fmt"
	"log/slog"
)

// DiagnosticCode classifies a non-fatal warning.
type DiagnosticCode string

const (
	// MoreFoldsThanSamples: the fold count was clamped to the sample count.
	MoreFoldsThanSamples DiagnosticCode = "MoreFoldsThanSamples"

	// EmptyFoldDropped: a fold received no samples and was removed.
	EmptyFoldDropped DiagnosticCode = "EmptyFoldDropped"

	// StratificationIgnored: stratified folds were requested for a
	// continuous outcome; plain folds were used instead.
	StratificationIgnored DiagnosticCode = "StratificationIgnored"

	// FoldFailed: fitting, prediction or evaluation failed for one fold and
	// penalty metrics were recorded.
	FoldFailed DiagnosticCode = "FoldFailed"

	// SDUnavailable: only one fold exists, so standard deviations are
	// reported as not available.
	SDUnavailable DiagnosticCode = "SDUnavailable"

	// Incomplete: the context ended before every combination was
	// evaluated.
	Incomplete DiagnosticCode = "Incomplete"
)

// Diagnostic is a structured, non-fatal warning returned alongside results.
type Diagnostic struct {
	Code    DiagnosticCode
	Message string

	// Combination is the combination index, or -1 when not tied to one.
	Combination int

	// Fold is the fold index, or -1 when not tied to one.
	Fold int
}

// String implements fmt.Stringer.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

func newDiagnostic(code DiagnosticCode, format string, args ...any) Diagnostic {
	return Diagnostic{
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Combination: -1,
		Fold:        -1,
	}
}

// logDiagnostics writes each diagnostic at Warn level.
func logDiagnostics(ctx context.Context, logger *slog.Logger, diags []Diagnostic) {
	for _, d := range diags {
		attrs := []slog.Attr{slog.String("code", string(d.Code))}
		if d.Combination >= 0 {
			attrs = append(attrs, slog.Int("combination", d.Combination))
		}

		if d.Fold >= 0 {
			attrs = append(attrs, slog.Int("fold", d.Fold))
		}

		logger.LogAttrs(ctx, slog.LevelWarn, d.Message, attrs...)
	}
}

// HasDiagnostic reports whether diags contains the given code.
func HasDiagnostic(diags []Diagnostic, code DiagnosticCode) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}

	return false
}
