package discovery

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

type inspectionResult struct {
	repository DiscoveredRepository
	inspected  bool
}

// ScanAll walks root, inspects the discovered repositories concurrently with at most
// Options.Workers goroutines, and returns them sorted by path.
func (scanner *Scanner) ScanAll(executionContext context.Context, root string, options Options) ([]DiscoveredRepository, error) {
	return scanner.ScanRoots(executionContext, []string{root}, options)
}

// ScanRoots scans several roots and merges the results. A repository reachable from more than one
// root is reported once, with the depth observed from the first root listing it.
func (scanner *Scanner) ScanRoots(executionContext context.Context, roots []string, options Options) ([]DiscoveredRepository, error) {
	normalizedOptions := options.normalized()
	normalizedOptions.IssueHandler = serializedIssueHandler(options.IssueHandler)

	seenRepositories := make(map[string]struct{})
	var candidates []repositoryCandidate
	for _, root := range roots {
		rootPath, rootError := scanner.resolveRoot(root)
		if rootError != nil {
			return nil, rootError
		}
		scanner.walk(rootPath, normalizedOptions, func(candidate repositoryCandidate) bool {
			if _, alreadySeen := seenRepositories[candidate.path]; alreadySeen {
				return true
			}
			seenRepositories[candidate.path] = struct{}{}
			candidates = append(candidates, candidate)
			return executionContext.Err() == nil
		})
		if contextError := executionContext.Err(); contextError != nil {
			return nil, contextError
		}
	}

	results := make([]inspectionResult, len(candidates))
	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(normalizedOptions.Workers)
	for candidateIndex := range candidates {
		group.Go(func() error {
			if contextError := groupContext.Err(); contextError != nil {
				return contextError
			}
			repository, inspected := scanner.inspect(groupContext, candidates[candidateIndex], normalizedOptions.IssueHandler)
			results[candidateIndex] = inspectionResult{repository: repository, inspected: inspected}
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}

	repositories := make([]DiscoveredRepository, 0, len(results))
	for _, result := range results {
		if result.inspected {
			repositories = append(repositories, result.repository)
		}
	}
	sort.Slice(repositories, func(leftIndex int, rightIndex int) bool {
		return repositories[leftIndex].Path < repositories[rightIndex].Path
	})
	return repositories, nil
}
