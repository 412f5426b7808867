package bulkapply

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/temirov/gitid/internal/binding"
	"github.com/temirov/gitid/internal/repos/discovery"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/suggest"
)

const (
	// DefaultConfidenceThresholdConstant is the minimum top confidence acted on outside force mode.
	DefaultConfidenceThresholdConstant = 0.7
	// DefaultOperationTimeoutConstant bounds the work done for one repository.
	DefaultOperationTimeoutConstant = 30 * time.Second
	// DefaultConcurrencyConstant bounds the number of repositories processed at once.
	DefaultConcurrencyConstant = 4

	// ReasonApplied marks an outcome whose binding changed something, or would in a dry run.
	ReasonApplied = "applied"
	// ReasonAlreadyConfigured marks an outcome whose repository already matched the account.
	ReasonAlreadyConfigured = "already configured"
	// ReasonNoSuggestion marks a repository without candidates.
	ReasonNoSuggestion = "no suggestion"
	// ReasonAmbiguousSuggestion marks a repository whose best candidates are tied.
	ReasonAmbiguousSuggestion = "ambiguous suggestion"
	// ReasonLowConfidence marks a repository whose top candidate is below the threshold.
	ReasonLowConfidence = "low confidence"
	// ReasonTimeout marks a repository whose operation exceeded the timeout.
	ReasonTimeout = "timeout"
)

// ErrInvalidConfidenceThreshold indicates a threshold outside [0, 1].
var ErrInvalidConfidenceThreshold = errors.New("confidence threshold must be between 0 and 1")

// ValidateConfidenceThreshold accepts thresholds in [0, 1]. Zero acts on every unambiguous suggestion.
func ValidateConfidenceThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidConfidenceThreshold, threshold)
	}
	return nil
}

// Status is the terminal state of one repository in a run.
type Status string

const (
	// StatusApplied indicates the chosen account was bound, or would be in a dry run.
	StatusApplied Status = "applied"
	// StatusSkipped indicates no account was chosen.
	StatusSkipped Status = "skipped"
	// StatusFailed indicates the binding failed.
	StatusFailed Status = "failed"
)

// AnnotatedRepository pairs a discovered repository with its suggestion.
type AnnotatedRepository struct {
	Repository discovery.DiscoveredRepository
	Suggestion suggest.Suggestion
}

// Options configures a bulk run. A negative ConfidenceThreshold selects the default; zero is honored.
type Options struct {
	Mode                shared.ApplyMode
	ConfidenceThreshold float64
	OperationTimeout    time.Duration
	Concurrency         int
}

// DefaultOptions returns a dry run with default limits.
func DefaultOptions() Options {
	return Options{
		Mode:                shared.ApplyModeDryRun,
		ConfidenceThreshold: DefaultConfidenceThresholdConstant,
		OperationTimeout:    DefaultOperationTimeoutConstant,
		Concurrency:         DefaultConcurrencyConstant,
	}
}

func (options Options) normalized() Options {
	if options.ConfidenceThreshold < 0 || math.IsNaN(options.ConfidenceThreshold) {
		options.ConfidenceThreshold = DefaultConfidenceThresholdConstant
	}
	if options.OperationTimeout <= 0 {
		options.OperationTimeout = DefaultOperationTimeoutConstant
	}
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrencyConstant
	}
	return options
}

// ApplyOutcome records what happened to one repository.
type ApplyOutcome struct {
	RepositoryPath string           `json:"repository_path" yaml:"repository_path"`
	Status         Status           `json:"status" yaml:"status"`
	ChosenAccount  string           `json:"chosen_account,omitempty" yaml:"chosen_account,omitempty"`
	Reason         string           `json:"reason" yaml:"reason"`
	Actions        []binding.Action `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// BulkReport aggregates the outcomes of one run in input order.
type BulkReport struct {
	RunID       string           `json:"run_id" yaml:"run_id"`
	Mode        shared.ApplyMode `json:"mode" yaml:"mode"`
	DryRun      bool             `json:"dry_run" yaml:"dry_run"`
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	Outcomes    []ApplyOutcome   `json:"outcomes" yaml:"outcomes"`
}

// HasFailures reports whether any outcome failed.
func (report BulkReport) HasFailures() bool {
	for _, outcome := range report.Outcomes {
		if outcome.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Count returns the number of outcomes with status.
func (report BulkReport) Count(status Status) int {
	count := 0
	for _, outcome := range report.Outcomes {
		if outcome.Status == status {
			count++
		}
	}
	return count
}

// OutcomesWithStatus returns the outcomes with status in input order.
func (report BulkReport) OutcomesWithStatus(status Status) []ApplyOutcome {
	var selected []ApplyOutcome
	for _, outcome := range report.Outcomes {
		if outcome.Status == status {
			selected = append(selected, outcome)
		}
	}
	return selected
}
