package suggest

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/temirov/gitid/internal/accounts"
	"github.com/temirov/gitid/internal/repos/discovery"
)

const (
	// ExactAliasConfidenceConstant scores a remote that already routes through the account's alias.
	ExactAliasConfidenceConstant = 1.0
	// OwnerMatchConfidenceConstant scores a provider remote whose owner equals the account username.
	OwnerMatchConfidenceConstant = 0.85
	// HostOnlyConfidenceConstant scores a provider remote with no owner evidence.
	HostOnlyConfidenceConstant = 0.4

	// ExactAliasRationaleConstant explains an alias match.
	ExactAliasRationaleConstant = "exact alias match"
	// OwnerMatchRationaleConstant explains an owner match.
	OwnerMatchRationaleConstant = "owner match"
	// HostOnlyRationaleConstant explains a host-only match.
	HostOnlyRationaleConstant = "host-only match"
	// NoRemoteRationaleConstant explains a suggestion for a repository without a usable origin.
	NoRemoteRationaleConstant = "no remote configured"
	// NoMatchingAccountRationaleConstant explains a suggestion where no account applies.
	NoMatchingAccountRationaleConstant = "no matching account"

	ownerPathSeparatorConstant = "/"
)

// Candidate is one account scored against a repository.
type Candidate struct {
	AccountName string  `json:"account_name" yaml:"account_name"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
	Rationale   string  `json:"rationale" yaml:"rationale"`
}

// Suggestion ranks accounts for a repository. Candidates are ordered by descending confidence, then by
// account name. Rationale is set only when there are no candidates.
type Suggestion struct {
	RepositoryPath string      `json:"repository_path" yaml:"repository_path"`
	Candidates     []Candidate `json:"candidates" yaml:"candidates"`
	Rationale      string      `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// Top returns the highest ranked candidate.
func (suggestion Suggestion) Top() (Candidate, bool) {
	if len(suggestion.Candidates) == 0 {
		return Candidate{}, false
	}
	return suggestion.Candidates[0], true
}

// Ambiguous reports whether the two best candidates share the same confidence.
func (suggestion Suggestion) Ambiguous() bool {
	return len(suggestion.Candidates) > 1 && suggestion.Candidates[0].Confidence == suggestion.Candidates[1].Confidence
}

// Suggest scores every account against the repository remote. The result depends only on its inputs.
func Suggest(repository discovery.DiscoveredRepository, accountList []accounts.Account) Suggestion {
	suggestion := Suggestion{RepositoryPath: repository.Path}
	if !repository.HasRemote() || len(repository.RemoteHost) == 0 {
		suggestion.Rationale = NoRemoteRationaleConstant
		return suggestion
	}

	owner := firstOwnerSegment(repository.RemoteOwnerPath)
	for _, account := range accountList {
		if candidate, matched := score(repository.RemoteHost, owner, account); matched {
			suggestion.Candidates = append(suggestion.Candidates, candidate)
		}
	}
	if len(suggestion.Candidates) == 0 {
		suggestion.Rationale = NoMatchingAccountRationaleConstant
		return suggestion
	}

	sort.SliceStable(suggestion.Candidates, func(leftIndex int, rightIndex int) bool {
		left := suggestion.Candidates[leftIndex]
		right := suggestion.Candidates[rightIndex]
		if left.Confidence != right.Confidence {
			return left.Confidence > right.Confidence
		}
		return left.AccountName < right.AccountName
	})
	return suggestion
}

// SuggestAll annotates repositories concurrently with at most workers goroutines. Results keep the
// order of repositories.
func SuggestAll(executionContext context.Context, repositories []discovery.DiscoveredRepository, accountList []accounts.Account, workers int) ([]Suggestion, error) {
	suggestions := make([]Suggestion, len(repositories))
	if workers <= 0 {
		workers = 1
	}

	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(workers)
	for repositoryIndex, repository := range repositories {
		group.Go(func() error {
			if contextError := groupContext.Err(); contextError != nil {
				return contextError
			}
			suggestions[repositoryIndex] = Suggest(repository, accountList)
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return suggestions, nil
}

func score(remoteHost string, owner string, account accounts.Account) (Candidate, bool) {
	candidate := Candidate{AccountName: account.Name}
	switch {
	case len(account.HostAlias) > 0 && strings.EqualFold(remoteHost, account.HostAlias):
		candidate.Confidence = ExactAliasConfidenceConstant
		candidate.Rationale = ExactAliasRationaleConstant
	case len(account.ProviderHost) > 0 && strings.EqualFold(remoteHost, account.ProviderHost) && len(owner) > 0 && strings.EqualFold(owner, account.GitUsername):
		candidate.Confidence = OwnerMatchConfidenceConstant
		candidate.Rationale = OwnerMatchRationaleConstant
	case len(account.ProviderHost) > 0 && strings.EqualFold(remoteHost, account.ProviderHost):
		candidate.Confidence = HostOnlyConfidenceConstant
		candidate.Rationale = HostOnlyRationaleConstant
	default:
		return Candidate{}, false
	}
	return candidate, true
}

func firstOwnerSegment(ownerPath string) string {
	trimmed := strings.Trim(ownerPath, ownerPathSeparatorConstant)
	owner, _, _ := strings.Cut(trimmed, ownerPathSeparatorConstant)
	return owner
}
