// Package assemble renders the selected subset of a scanned tree into the
// final annotated markdown document. Assembly is a pure function of the tree:
// all content was materialized during scanning, so no filesystem access
// happens here and repeated assembly of the same state is byte-identical.
package assemble

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/promptree/promptree/internal/selection"
	"github.com/promptree/promptree/internal/types"
	"github.com/promptree/promptree/internal/utils"
)

const (
	documentHeader       = "# Codebase Structure and File Contents"
	structureHeader      = "## Project Structure"
	contentsHeader       = "## File Contents"
	sectionSeparator     = "---"
	treeFenceOpen        = "```text"
	fenceClose           = "```"
	contentSkippedFormat = "--- content skipped: %s ---"
	omittedAnnotation    = "content omitted"

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
)

// Options controls which parts of the tree are rendered and how.
type Options struct {
	// IncludeLineCounts annotates checked text files with their line counts.
	IncludeLineCounts bool
	// TreeOnly suppresses the file-contents section.
	TreeOnly bool
	// ShowOmitted lists deselected entries in the tree section with a
	// "content omitted" note instead of hiding them.
	ShowOmitted bool
	// DirectorySummaries annotates directory lines with the number of
	// checked descendant files.
	DirectorySummaries bool
}

// Assemble renders root into the final document. The tree section is
// restricted to nodes whose selection is checked or partial (unless
// ShowOmitted); the content body contains every checked file in depth-first
// pre-order, mirroring the tree section, with placeholder blocks for files
// whose content could not be included.
func Assemble(root *types.TreeNode, options Options) string {
	if root == nil {
		return ""
	}

	var builder strings.Builder
	builder.WriteString(documentHeader + "\n\n")
	builder.WriteString(structureHeader + "\n\n")
	builder.WriteString(treeFenceOpen + "\n")
	builder.WriteString(root.Name + "\n")
	writeTreeLines(&builder, root, "", options)
	builder.WriteString(fenceClose + "\n")

	if options.TreeOnly {
		return builder.String()
	}

	builder.WriteString("\n" + sectionSeparator + "\n\n")
	builder.WriteString(contentsHeader + "\n\n")

	relativeBase := filepath.Dir(root.Path)
	for _, fileNode := range selection.CheckedFiles(root) {
		relativePath := utils.RelativePathOrSelf(fileNode.Path, relativeBase)
		builder.WriteString("### `" + relativePath + "`\n\n")
		if fileNode.Class == types.ContentText {
			builder.WriteString("```" + fileNode.Language + "\n")
			builder.WriteString(fileNode.Content)
			if !strings.HasSuffix(fileNode.Content, "\n") {
				builder.WriteString("\n")
			}
			builder.WriteString(fenceClose + "\n\n")
		} else {
			builder.WriteString(treeFenceOpen + "\n")
			builder.WriteString(fmt.Sprintf(contentSkippedFormat, skipReason(fileNode)) + "\n")
			builder.WriteString(fenceClose + "\n\n")
		}
		builder.WriteString(sectionSeparator + "\n\n")
	}

	return builder.String()
}

// writeTreeLines renders the visible children of directoryNode with the usual
// box-drawing connectors.
func writeTreeLines(builder *strings.Builder, directoryNode *types.TreeNode, prefix string, options Options) {
	visibleChildren := make([]*types.TreeNode, 0, len(directoryNode.Children))
	for _, childNode := range directoryNode.Children {
		if isVisible(childNode, options) {
			visibleChildren = append(visibleChildren, childNode)
		}
	}

	for childIndex, childNode := range visibleChildren {
		isLast := childIndex == len(visibleChildren)-1
		connector := treeBranchConnector
		childPrefix := prefix + treeBranchPadding
		if isLast {
			connector = treeLastConnector
			childPrefix = prefix + treeLastPadding
		}

		annotation := nodeAnnotation(childNode, options)
		builder.WriteString(prefix + connector + childNode.Name + annotation + "\n")

		if childNode.IsDirectory() && !(options.ShowOmitted && childNode.Selection == types.SelectionUnchecked) {
			writeTreeLines(builder, childNode, childPrefix, options)
		}
	}
}

// isVisible reports whether a node appears in the tree section. Unchecked
// subtrees are omitted entirely unless ShowOmitted lists them.
func isVisible(node *types.TreeNode, options Options) bool {
	if options.ShowOmitted {
		return true
	}
	if node.IsDirectory() {
		return node.Selection == types.SelectionChecked || node.Selection == types.SelectionPartial
	}
	return node.Selection == types.SelectionChecked
}

// nodeAnnotation builds the bracketed annotation suffix for one tree line.
func nodeAnnotation(node *types.TreeNode, options Options) string {
	var parts []string

	if node.IsDirectory() {
		if options.ShowOmitted && node.Selection == types.SelectionUnchecked {
			parts = append(parts, omittedAnnotation)
		} else if options.DirectorySummaries {
			checkedCount := len(selection.CheckedFiles(node))
			label := "files"
			if checkedCount == 1 {
				label = "file"
			}
			parts = append(parts, fmt.Sprintf("%d %s", checkedCount, label))
		}
	} else {
		switch node.Class {
		case types.ContentText:
			if options.IncludeLineCounts && node.Selection == types.SelectionChecked && node.LineCount >= 0 {
				label := "lines"
				if node.LineCount == 1 {
					label = "line"
				}
				parts = append(parts, fmt.Sprintf("%d %s", node.LineCount, label))
			}
			if options.ShowOmitted && node.Selection != types.SelectionChecked {
				parts = append(parts, omittedAnnotation)
			}
		default:
			parts = append(parts, skipReason(node))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return "  [" + strings.Join(parts, " | ") + "]"
}

// skipReason returns the annotation and placeholder text for a node whose
// content is not rendered. Detail carries the specific reason recorded by the
// scanner (for example the formatted size of an oversized file).
func skipReason(node *types.TreeNode) string {
	if node.Detail != "" {
		return node.Detail
	}
	return node.Class.String()
}
