// Package ignore decides which scanned paths are excluded from processing.
package ignore

import (
	"path/filepath"
	"strings"
)

const pathSegmentSeparator = "/"

// DefaultPatterns lists the directories and files excluded unless the caller
// opts out. Matching directories are pruned without descending into them.
var DefaultPatterns = []string{
	".git/",
	"__pycache__/",
	"node_modules/",
	".idea/",
	".vscode/",
	".DS_Store",
	"build/",
	"dist/",
	".env",
}

// Matcher evaluates an ordered list of ignore patterns against scanned paths.
//
// Pattern forms:
//   - a bare name or glob ("*.log", "?cache") matches the base name;
//   - a trailing slash ("vendor/") restricts the pattern to directories;
//   - a pattern containing a slash ("docs/internal/", "cmd/*.gen.go") matches
//     segment-wise against the path relative to the scan root, with
//     directory-form patterns covering every descendant.
//
// Evaluation returns true on the first matching pattern and has no side
// effects; disjoint patterns are order-independent.
type Matcher struct {
	patterns        []string
	caseInsensitive bool
}

// NewMatcher builds a Matcher from the ordered pattern list. When
// caseInsensitive is true both patterns and candidates are folded to lower
// case before comparison.
func NewMatcher(patterns []string, caseInsensitive bool) *Matcher {
	normalized := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		trimmedPattern = strings.ReplaceAll(trimmedPattern, "\\", pathSegmentSeparator)
		if caseInsensitive {
			trimmedPattern = strings.ToLower(trimmedPattern)
		}
		normalized = append(normalized, trimmedPattern)
	}
	return &Matcher{patterns: normalized, caseInsensitive: caseInsensitive}
}

// Matches reports whether the entry at relativePath should be ignored.
// relativePath is relative to the scan root in forward-slash form; the scan
// root itself is never matched.
func (matcher *Matcher) Matches(relativePath string, isDirectory bool) bool {
	normalizedPath := strings.ReplaceAll(relativePath, "\\", pathSegmentSeparator)
	if matcher.caseInsensitive {
		normalizedPath = strings.ToLower(normalizedPath)
	}
	if normalizedPath == "" || normalizedPath == "." {
		return false
	}

	pathSegments := strings.Split(normalizedPath, pathSegmentSeparator)
	baseName := pathSegments[len(pathSegments)-1]

	for _, patternValue := range matcher.patterns {
		isDirectoryPattern := strings.HasSuffix(patternValue, pathSegmentSeparator)
		trimmedPattern := strings.TrimSuffix(patternValue, pathSegmentSeparator)
		if trimmedPattern == "" {
			continue
		}

		if isDirectoryPattern && !isDirectory && !strings.Contains(trimmedPattern, pathSegmentSeparator) {
			// A bare directory pattern never matches a file of the same name.
			if !containsAncestorSegment(pathSegments, trimmedPattern) {
				continue
			}
			return true
		}

		if strings.Contains(trimmedPattern, pathSegmentSeparator) {
			patternSegments := strings.Split(trimmedPattern, pathSegmentSeparator)
			if isDirectoryPattern {
				if len(pathSegments) >= len(patternSegments) && segmentsMatch(pathSegments[:len(patternSegments)], patternSegments) {
					return true
				}
				continue
			}
			if len(pathSegments) == len(patternSegments) && segmentsMatch(pathSegments, patternSegments) {
				return true
			}
			continue
		}

		isMatched, matchError := filepath.Match(trimmedPattern, baseName)
		if matchError == nil && isMatched {
			return true
		}
	}
	return false
}

// containsAncestorSegment reports whether any non-final path segment matches
// the pattern, which covers files inside a directory matched by a bare
// directory pattern.
func containsAncestorSegment(pathSegments []string, pattern string) bool {
	for segmentIndex := 0; segmentIndex < len(pathSegments)-1; segmentIndex++ {
		isMatched, matchError := filepath.Match(pattern, pathSegments[segmentIndex])
		if matchError == nil && isMatched {
			return true
		}
	}
	return false
}

// segmentsMatch reports whether each pattern segment matches the corresponding
// path segment using filepath.Match semantics.
func segmentsMatch(pathSegments, patternSegments []string) bool {
	for segmentIndex, patternSegment := range patternSegments {
		isMatched, matchError := filepath.Match(patternSegment, pathSegments[segmentIndex])
		if matchError != nil || !isMatched {
			return false
		}
	}
	return true
}
