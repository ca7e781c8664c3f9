// Package selection maintains tri-state consistency across the scanned tree
// as nodes are checked and unchecked.
package selection

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/promptree/promptree/internal/types"
	"github.com/promptree/promptree/internal/utils"
)

// Toggle sets node to newState and keeps the tree consistent. For a
// directory the state is force-propagated to every descendant (bulk
// check/uncheck of the subtree); afterwards every ancestor up to the root is
// re-derived. Both steps complete before Toggle returns, so no reader ever
// observes an inconsistent tree. Partial is a derived state and is not a
// valid toggle target; such calls are ignored.
func Toggle(node *types.TreeNode, newState types.SelectionState) {
	if node == nil || newState == types.SelectionPartial {
		return
	}
	propagateDown(node, newState)
	RecomputeAncestors(node)
}

// RecomputeAncestors walks upward from node's parent to the root, re-deriving
// each directory's state from its children: checked iff all children are
// checked, unchecked iff all are unchecked, partial otherwise.
func RecomputeAncestors(node *types.TreeNode) {
	if node == nil {
		return
	}
	for ancestor := node.Parent; ancestor != nil; ancestor = ancestor.Parent {
		ancestor.Selection = DeriveState(ancestor)
	}
}

// DeriveState computes a directory's selection state from its children. A
// childless directory keeps its directly-assigned state; file nodes return
// their own state unchanged.
func DeriveState(node *types.TreeNode) types.SelectionState {
	if node == nil {
		return types.SelectionUnchecked
	}
	if !node.IsDirectory() || len(node.Children) == 0 {
		return node.Selection
	}
	allChecked := true
	allUnchecked := true
	for _, childNode := range node.Children {
		switch childNode.Selection {
		case types.SelectionChecked:
			allUnchecked = false
		case types.SelectionUnchecked:
			allChecked = false
		default:
			allChecked = false
			allUnchecked = false
		}
	}
	if allChecked {
		return types.SelectionChecked
	}
	if allUnchecked {
		return types.SelectionUnchecked
	}
	return types.SelectionPartial
}

// ApplyPatterns toggles every file node whose root-relative path matches one
// of the glob patterns and returns the number of nodes toggled. Patterns
// follow the same base-name versus path-scoped convention as ignore rules.
func ApplyPatterns(root *types.TreeNode, patterns []string, newState types.SelectionState, caseInsensitive bool) int {
	if root == nil || len(patterns) == 0 {
		return 0
	}
	normalizedPatterns := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(filepath.ToSlash(pattern))
		if trimmedPattern == "" {
			continue
		}
		if caseInsensitive {
			trimmedPattern = strings.ToLower(trimmedPattern)
		}
		normalizedPatterns = append(normalizedPatterns, trimmedPattern)
	}

	toggledCount := 0
	root.VisitDepthFirst(func(node *types.TreeNode) bool {
		if !node.IsFile() {
			return true
		}
		relativePath := utils.RelativePathOrSelf(node.Path, root.Path)
		if caseInsensitive {
			relativePath = strings.ToLower(relativePath)
		}
		baseName := relativePath
		if separatorIndex := strings.LastIndex(relativePath, "/"); separatorIndex >= 0 {
			baseName = relativePath[separatorIndex+1:]
		}
		for _, pattern := range normalizedPatterns {
			candidate := baseName
			if strings.Contains(pattern, "/") {
				candidate = relativePath
			}
			if matched, matchError := filepath.Match(pattern, candidate); matchError == nil && matched {
				if node.Selection != newState {
					Toggle(node, newState)
					toggledCount++
				}
				break
			}
		}
		return true
	})
	return toggledCount
}

// CheckedFiles returns the checked file nodes in depth-first pre-order, the
// same order the assembled content body uses.
func CheckedFiles(root *types.TreeNode) []*types.TreeNode {
	var checkedNodes []*types.TreeNode
	root.VisitDepthFirst(func(node *types.TreeNode) bool {
		if node.IsFile() && node.Selection == types.SelectionChecked {
			checkedNodes = append(checkedNodes, node)
		}
		return true
	})
	return checkedNodes
}

// VerifyStates confirms the derived-state invariant holds for every directory
// in the tree and reports the first violation found.
func VerifyStates(root *types.TreeNode) error {
	var violation error
	root.VisitDepthFirst(func(node *types.TreeNode) bool {
		if !node.IsDirectory() {
			if node.Selection == types.SelectionPartial {
				violation = fmt.Errorf("file %s holds partial state", node.Path)
				return false
			}
			return true
		}
		derivedState := DeriveState(node)
		if node.Selection != derivedState {
			violation = fmt.Errorf("directory %s holds %s, derived %s", node.Path, node.Selection, derivedState)
			return false
		}
		return true
	})
	return violation
}

// propagateDown assigns newState to node and every descendant.
func propagateDown(node *types.TreeNode, newState types.SelectionState) {
	node.Selection = newState
	for _, childNode := range node.Children {
		propagateDown(childNode, newState)
	}
}
