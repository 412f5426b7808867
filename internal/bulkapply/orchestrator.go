package bulkapply

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/binding"
	"github.com/temirov/gitid/internal/repos/shared"
	"github.com/temirov/gitid/internal/suggest"
)

const (
	runStartedLogMessageConstant      = "Starting bulk identity apply"
	runFinishedLogMessageConstant     = "Finished bulk identity apply"
	outcomeLogMessageConstant         = "Repository outcome"
	logFieldRunIDConstant             = "run_id"
	logFieldModeConstant              = "mode"
	logFieldRepositoriesConstant      = "repositories"
	logFieldRepositoryConstant        = "repository"
	logFieldStatusConstant            = "status"
	logFieldAccountConstant           = "account"
	logFieldReasonConstant            = "reason"
	logFieldAppliedCountConstant      = "applied"
	logFieldSkippedCountConstant      = "skipped"
	logFieldFailedCountConstant       = "failed"
	missingDependenciesReasonConstant = "bulk apply dependencies are incomplete"
)

// AccountResolver resolves account names chosen by suggestions.
type AccountResolver interface {
	ByName(name string) (accounts.Account, bool)
}

// RepositoryBinder binds one account to one repository.
type RepositoryBinder interface {
	Bind(executionContext context.Context, repositoryPath string, account accounts.Account, mode shared.ApplyMode) (binding.Result, error)
}

// Dependencies captures collaborators required by the orchestrator.
type Dependencies struct {
	Accounts    AccountResolver
	Binder      RepositoryBinder
	Clock       shared.Clock
	Logger      *zap.Logger
	RunIDSource func() string
}

// Decision is the pure selection made for one suggestion.
type Decision struct {
	Act       bool
	Candidate suggest.Candidate
	Reason    string
}

// Decide selects the candidate to act on. Ties between the best candidates are never resolved, even in
// force mode; force only waives the confidence threshold.
func Decide(suggestion suggest.Suggestion, options Options) Decision {
	options = options.normalized()
	top, found := suggestion.Top()
	if !found {
		return Decision{Reason: ReasonNoSuggestion}
	}
	if suggestion.Ambiguous() {
		return Decision{Candidate: top, Reason: ReasonAmbiguousSuggestion}
	}
	if !options.Mode.IgnoresConfidenceThreshold() && top.Confidence < options.ConfidenceThreshold {
		return Decision{Candidate: top, Reason: ReasonLowConfidence}
	}
	return Decision{Act: true, Candidate: top}
}

// Orchestrator drives identity binding over a batch of repositories.
type Orchestrator struct {
	dependencies Dependencies
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(dependencies Dependencies) *Orchestrator {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = shared.SystemClock{}
	}
	if dependencies.RunIDSource == nil {
		dependencies.RunIDSource = uuid.NewString
	}
	return &Orchestrator{dependencies: dependencies}
}

// Apply processes every repository and returns exactly one outcome per input, in input order. A failure
// in one repository never stops the batch and is never rolled back.
func (orchestrator *Orchestrator) Apply(executionContext context.Context, repositories []AnnotatedRepository, options Options) BulkReport {
	options = options.normalized()
	report := BulkReport{
		RunID:       orchestrator.dependencies.RunIDSource(),
		Mode:        options.Mode,
		DryRun:      !options.Mode.Mutates(),
		GeneratedAt: orchestrator.dependencies.Clock.Now(),
		Outcomes:    make([]ApplyOutcome, len(repositories)),
	}
	logger := orchestrator.dependencies.Logger.With(zap.String(logFieldRunIDConstant, report.RunID))
	logger.Info(runStartedLogMessageConstant, zap.Stringer(logFieldModeConstant, options.Mode), zap.Int(logFieldRepositoriesConstant, len(repositories)))

	var group errgroup.Group
	group.SetLimit(options.Concurrency)
	for repositoryIndex, repository := range repositories {
		group.Go(func() error {
			outcome := orchestrator.process(executionContext, repository, options)
			report.Outcomes[repositoryIndex] = outcome
			logger.Debug(
				outcomeLogMessageConstant,
				zap.String(logFieldRepositoryConstant, outcome.RepositoryPath),
				zap.String(logFieldStatusConstant, string(outcome.Status)),
				zap.String(logFieldAccountConstant, outcome.ChosenAccount),
				zap.String(logFieldReasonConstant, outcome.Reason),
			)
			return nil
		})
	}
	_ = group.Wait()

	logger.Info(
		runFinishedLogMessageConstant,
		zap.Int(logFieldAppliedCountConstant, report.Count(StatusApplied)),
		zap.Int(logFieldSkippedCountConstant, report.Count(StatusSkipped)),
		zap.Int(logFieldFailedCountConstant, report.Count(StatusFailed)),
	)
	return report
}

func (orchestrator *Orchestrator) process(executionContext context.Context, repository AnnotatedRepository, options Options) ApplyOutcome {
	outcome := ApplyOutcome{RepositoryPath: repository.Repository.Path}

	decision := Decide(repository.Suggestion, options)
	if !decision.Act {
		outcome.Status = StatusSkipped
		outcome.Reason = decision.Reason
		return outcome
	}
	outcome.ChosenAccount = decision.Candidate.AccountName

	if orchestrator.dependencies.Accounts == nil || orchestrator.dependencies.Binder == nil {
		outcome.Status = StatusFailed
		outcome.Reason = missingDependenciesReasonConstant
		return outcome
	}
	account, found := orchestrator.dependencies.Accounts.ByName(decision.Candidate.AccountName)
	if !found {
		outcome.Status = StatusFailed
		outcome.Reason = accounts.AccountNotFoundError{Query: decision.Candidate.AccountName}.Error()
		return outcome
	}

	result, bindError := orchestrator.bindWithTimeout(executionContext, repository.Repository.Path, account, options)
	outcome.Actions = result.Actions
	switch {
	case errors.Is(bindError, context.DeadlineExceeded):
		outcome.Status = StatusFailed
		outcome.Reason = ReasonTimeout
	case bindError != nil:
		outcome.Status = StatusFailed
		outcome.Reason = bindError.Error()
	case result.Changed():
		outcome.Status = StatusApplied
		outcome.Reason = ReasonApplied
	default:
		outcome.Status = StatusApplied
		outcome.Reason = ReasonAlreadyConfigured
	}
	return outcome
}

type bindResult struct {
	result binding.Result
	err    error
}

// bindWithTimeout abandons a binding that outlives the operation timeout. The binding goroutine observes
// the same cancelled context and stops before its next write.
func (orchestrator *Orchestrator) bindWithTimeout(executionContext context.Context, repositoryPath string, account accounts.Account, options Options) (binding.Result, error) {
	operationContext, cancel := context.WithTimeout(executionContext, options.OperationTimeout)
	defer cancel()

	completion := make(chan bindResult, 1)
	go func() {
		result, bindError := orchestrator.dependencies.Binder.Bind(operationContext, repositoryPath, account, options.Mode)
		completion <- bindResult{result: result, err: bindError}
	}()

	select {
	case completed := <-completion:
		return completed.result, completed.err
	case <-operationContext.Done():
		return binding.Result{}, operationContext.Err()
	}
}
