// Package types defines the in-memory tree model shared across the promptree engine.
package types

const (
	// NodeKindFile identifies a regular file node.
	NodeKindFile = "file"
	// NodeKindDirectory identifies a directory node.
	NodeKindDirectory = "directory"

	// LanguageNone is the language tag assigned to nodes without textual content.
	LanguageNone = "none"

	// LineCountUnknown marks a node whose line count could not be determined.
	LineCountUnknown = -1
)

// SelectionState describes a node's inclusion status in the assembled output.
type SelectionState int

const (
	// SelectionUnchecked excludes the node and, for directories, its subtree.
	SelectionUnchecked SelectionState = iota
	// SelectionChecked includes the node fully.
	SelectionChecked
	// SelectionPartial marks a directory with a mix of checked and unchecked descendants.
	SelectionPartial
)

// String returns the lower-case name of the selection state.
func (state SelectionState) String() string {
	switch state {
	case SelectionChecked:
		return "checked"
	case SelectionPartial:
		return "partial"
	default:
		return "unchecked"
	}
}

// ContentClass classifies what the scanner learned about a node's content.
// A dedicated classification keeps "empty file" and "unreadable file" distinct
// instead of overloading the content string with sentinel values.
type ContentClass int

const (
	// ContentNone applies to directories, which carry no content of their own.
	ContentNone ContentClass = iota
	// ContentText marks a file whose content was read and cached as text.
	ContentText
	// ContentBinary marks a file whose sampled prefix failed the text heuristic.
	ContentBinary
	// ContentTooLarge marks a file exceeding the configured size ceiling; it is never read.
	ContentTooLarge
	// ContentUnreadable marks a file or directory that failed with a filesystem error.
	ContentUnreadable
	// ContentSymlink marks a symbolic link recorded as a non-traversed leaf.
	ContentSymlink
)

// String returns the lower-case name of the content class.
func (class ContentClass) String() string {
	switch class {
	case ContentText:
		return "text"
	case ContentBinary:
		return "binary"
	case ContentTooLarge:
		return "too large"
	case ContentUnreadable:
		return "unreadable"
	case ContentSymlink:
		return "symlink"
	default:
		return "none"
	}
}

// TreeNode represents one file or directory produced by a scan.
//
// Children are ordered directories-first with case-insensitive name ordering,
// fixed when the scan finalizes. The Parent pointer is a non-owning
// back-reference used for upward traversal; only the root node has a nil
// Parent. Paths are absolute and unique beneath any single parent.
type TreeNode struct {
	Path      string
	Name      string
	Kind      string
	SizeBytes int64
	LineCount int
	Language  string
	Class     ContentClass
	Detail    string
	Content   string
	Selection SelectionState
	Children  []*TreeNode
	Parent    *TreeNode
}

// IsDirectory reports whether the node represents a directory.
func (node *TreeNode) IsDirectory() bool {
	return node.Kind == NodeKindDirectory
}

// IsFile reports whether the node represents a file or recorded symlink leaf.
func (node *TreeNode) IsFile() bool {
	return node.Kind == NodeKindFile
}

// VisitDepthFirst invokes visit for the node and every descendant in
// pre-order. Traversal stops early when visit returns false.
func (node *TreeNode) VisitDepthFirst(visit func(*TreeNode) bool) bool {
	if node == nil {
		return true
	}
	if !visit(node) {
		return false
	}
	for _, childNode := range node.Children {
		if !childNode.VisitDepthFirst(visit) {
			return false
		}
	}
	return true
}

// FindByPath returns the descendant node with the given absolute path, or nil.
func (node *TreeNode) FindByPath(absolutePath string) *TreeNode {
	var found *TreeNode
	node.VisitDepthFirst(func(candidate *TreeNode) bool {
		if candidate.Path == absolutePath {
			found = candidate
			return false
		}
		return true
	})
	return found
}

// CountFiles returns the number of file nodes in the subtree.
func (node *TreeNode) CountFiles() int {
	total := 0
	node.VisitDepthFirst(func(candidate *TreeNode) bool {
		if candidate.IsFile() {
			total++
		}
		return true
	})
	return total
}
