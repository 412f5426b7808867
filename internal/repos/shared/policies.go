package shared

import (
	"fmt"
	"strings"
)

const (
	applyModeDryRunStringConstant        = "dry-run"
	applyModeApplyStringConstant         = "apply"
	applyModeForceStringConstant         = "force"
	unsupportedApplyModeTemplateConstant = "unsupported apply mode: %s"
)

// ApplyMode specifies how identity reconciliation treats suggestions.
type ApplyMode int

const (
	// ApplyModeDryRun computes and reports intended mutations without writing anything.
	ApplyModeDryRun ApplyMode = iota
	// ApplyModeApply mutates repositories whose top suggestion clears the confidence threshold.
	ApplyModeApply
	// ApplyModeForce mutates repositories using the top suggestion regardless of confidence.
	ApplyModeForce
)

// ApplyModeFromFlags converts boolean CLI flags into a mode. Dry run wins over force.
func ApplyModeFromFlags(dryRun bool, force bool) ApplyMode {
	switch {
	case dryRun:
		return ApplyModeDryRun
	case force:
		return ApplyModeForce
	default:
		return ApplyModeApply
	}
}

// ParseApplyMode converts a textual mode into an ApplyMode.
func ParseApplyMode(raw string) (ApplyMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case applyModeDryRunStringConstant:
		return ApplyModeDryRun, nil
	case applyModeApplyStringConstant:
		return ApplyModeApply, nil
	case applyModeForceStringConstant:
		return ApplyModeForce, nil
	default:
		return ApplyModeDryRun, fmt.Errorf(unsupportedApplyModeTemplateConstant, raw)
	}
}

// String renders the mode as used in flags and reports.
func (mode ApplyMode) String() string {
	switch mode {
	case ApplyModeApply:
		return applyModeApplyStringConstant
	case ApplyModeForce:
		return applyModeForceStringConstant
	default:
		return applyModeDryRunStringConstant
	}
}

// Mutates reports whether the mode writes to disk.
func (mode ApplyMode) Mutates() bool {
	return mode != ApplyModeDryRun
}

// IgnoresConfidenceThreshold reports whether the top candidate is accepted regardless of score.
func (mode ApplyMode) IgnoresConfidenceThreshold() bool {
	return mode == ApplyModeForce
}

// MarshalText implements encoding.TextMarshaler for structured report output.
func (mode ApplyMode) MarshalText() ([]byte, error) {
	return []byte(mode.String()), nil
}
