package pathutils

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// RootSanitizer normalizes scan root inputs: blank entries are dropped, home shortcuts are expanded, duplicates
// are removed and roots nested inside another root are pruned so no repository is visited twice.
type RootSanitizer struct {
	homeExpander *HomeExpander
}

// NewRootSanitizer constructs a RootSanitizer. A nil expander uses the operating system home directory.
func NewRootSanitizer(homeExpander *HomeExpander) *RootSanitizer {
	if homeExpander == nil {
		homeExpander = NewHomeExpander()
	}
	return &RootSanitizer{homeExpander: homeExpander}
}

// Sanitize returns the surviving roots in their original order.
func (sanitizer *RootSanitizer) Sanitize(candidateRoots []string) []string {
	type rootCandidate struct {
		value     string
		canonical string
	}

	candidates := make([]rootCandidate, 0, len(candidateRoots))
	for _, candidateRoot := range candidateRoots {
		trimmedRoot := strings.TrimSpace(candidateRoot)
		if len(trimmedRoot) == 0 {
			continue
		}
		expandedRoot := sanitizer.homeExpander.Expand(trimmedRoot)
		candidates = append(candidates, rootCandidate{value: expandedRoot, canonical: canonicalizePath(expandedRoot)})
	}
	if len(candidates) == 0 {
		return nil
	}

	sanitized := make([]string, 0, len(candidates))
	for candidateIndex, candidate := range candidates {
		covered := false
		for otherIndex, other := range candidates {
			if otherIndex == candidateIndex {
				continue
			}
			if other.canonical == candidate.canonical {
				covered = otherIndex < candidateIndex
			} else {
				covered = isNestedPath(other.canonical, candidate.canonical)
			}
			if covered {
				break
			}
		}
		if !covered && !slices.Contains(sanitized, candidate.value) {
			sanitized = append(sanitized, candidate.value)
		}
	}
	return sanitized
}

func canonicalizePath(path string) string {
	absolutePath, absoluteError := filepath.Abs(path)
	if absoluteError != nil {
		return filepath.Clean(path)
	}
	return absolutePath
}

func isNestedPath(parent string, candidate string) bool {
	if parent == candidate || len(candidate) <= len(parent) || !strings.HasPrefix(candidate, parent) {
		return false
	}
	if strings.HasSuffix(parent, string(os.PathSeparator)) {
		return true
	}
	return candidate[len(parent)] == os.PathSeparator
}
