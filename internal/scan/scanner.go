// Package scan walks a directory tree concurrently and builds the TreeNode
// model, reusing cached file content where metadata is unchanged.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/promptree/promptree/internal/cache"
	"github.com/promptree/promptree/internal/ignore"
	"github.com/promptree/promptree/internal/lang"
	"github.com/promptree/promptree/internal/types"
	"github.com/promptree/promptree/internal/utils"
)

// DefaultMaxFileSizeBytes bounds how many bytes of a single file are ever
// read. Files above the ceiling are recorded with a too-large classification
// and never loaded into memory.
const DefaultMaxFileSizeBytes = 10 * 1024 * 1024

// ErrInvalidRoot reports that the scan root does not exist or is not a directory.
var ErrInvalidRoot = errors.New("scan root is not a directory")

// ProgressFunc receives incremental scan progress. visitedCount is the number
// of nodes visited so far and currentPath the most recently visited path.
type ProgressFunc func(visitedCount int, currentPath string)

// Options configures a Scanner.
type Options struct {
	// Root is the directory to scan. It must exist and be a directory.
	Root string
	// IgnorePatterns is the ordered pattern list consumed by the matcher.
	IgnorePatterns []string
	// CaseInsensitive folds pattern matching to lower case.
	CaseInsensitive bool
	// MaxFileSizeBytes caps per-file reads; zero selects DefaultMaxFileSizeBytes.
	MaxFileSizeBytes int64
	// Concurrency bounds the worker pool; zero selects runtime.NumCPU.
	Concurrency int
	// IncludeSymlinks records symbolic links as non-traversed leaf nodes
	// instead of skipping them. Links are never followed either way.
	IncludeSymlinks bool
	// Progress, when set, is invoked for every visited node.
	Progress ProgressFunc
	// Logger receives warnings about entries that could not be read.
	Logger *zap.Logger
}

// Scanner coordinates a single concurrent scan pass.
type Scanner struct {
	options       Options
	matcher       *ignore.Matcher
	fileCache     *cache.Cache
	logger        *zap.Logger
	visitedCount  atomic.Int64
	progressMutex sync.Mutex
}

// New constructs a Scanner around the provided options and file cache. The
// cache is injected rather than ambient so concurrent scans of different
// roots cannot interfere; passing nil creates a private cache.
func New(options Options, fileCache *cache.Cache) *Scanner {
	if options.MaxFileSizeBytes <= 0 {
		options.MaxFileSizeBytes = DefaultMaxFileSizeBytes
	}
	if options.Concurrency <= 0 {
		options.Concurrency = runtime.NumCPU()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if fileCache == nil {
		fileCache = cache.New()
	}
	return &Scanner{
		options:   options,
		matcher:   ignore.NewMatcher(options.IgnorePatterns, options.CaseInsensitive),
		fileCache: fileCache,
		logger:    options.Logger,
	}
}

// Scan walks the root directory and returns the populated tree with every
// node defaulted to checked. Per-entry failures are recorded on the affected
// node and never abort the walk; only an invalid root is a hard failure.
// When ctx is cancelled, Scan stops promptly and returns the partially-built
// tree together with the context error so callers can tell cancellation
// apart from both success and failure.
func (scanner *Scanner) Scan(ctx context.Context) (*types.TreeNode, error) {
	absoluteRoot, absoluteError := filepath.Abs(scanner.options.Root)
	if absoluteError != nil {
		return nil, fmt.Errorf("resolving scan root %s: %w", scanner.options.Root, absoluteError)
	}
	rootInformation, statError := os.Stat(absoluteRoot)
	if statError != nil {
		return nil, fmt.Errorf("scan root %s: %w", absoluteRoot, statError)
	}
	if !rootInformation.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, absoluteRoot)
	}

	rootNode := &types.TreeNode{
		Path:      absoluteRoot,
		Name:      filepath.Base(absoluteRoot),
		Kind:      types.NodeKindDirectory,
		Language:  types.LanguageNone,
		LineCount: types.LineCountUnknown,
		Selection: types.SelectionChecked,
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(scanner.options.Concurrency)

	walkError := scanner.scanDirectory(groupContext, group, rootNode, "")
	waitError := group.Wait()

	sortChildrenRecursively(rootNode)

	if walkError != nil {
		return rootNode, walkError
	}
	if waitError != nil {
		return rootNode, waitError
	}
	if contextError := ctx.Err(); contextError != nil {
		return rootNode, contextError
	}
	return rootNode, nil
}

// scanDirectory lists one directory and attaches child nodes. Each directory
// node's child slice is written only by the goroutine that scans it, so
// attachment needs no locking; subdirectory and file work is handed to the
// bounded pool with an inline fallback when every worker slot is busy.
func (scanner *Scanner) scanDirectory(ctx context.Context, group *errgroup.Group, directoryNode *types.TreeNode, relativePath string) error {
	if contextError := ctx.Err(); contextError != nil {
		return contextError
	}
	scanner.reportProgress(directoryNode.Path)

	directoryEntries, readDirectoryError := os.ReadDir(directoryNode.Path)
	if readDirectoryError != nil {
		directoryNode.Class = types.ContentUnreadable
		directoryNode.Detail = "unreadable"
		scanner.logger.Warn(fmt.Sprintf("skipping unreadable directory %s: %v", directoryNode.Path, readDirectoryError))
		return nil
	}

	for _, directoryEntry := range directoryEntries {
		if contextError := ctx.Err(); contextError != nil {
			return contextError
		}

		entryName := directoryEntry.Name()
		childRelativePath := entryName
		if relativePath != "" {
			childRelativePath = relativePath + "/" + entryName
		}
		isDirectory := directoryEntry.IsDir()
		if scanner.matcher.Matches(childRelativePath, isDirectory) {
			continue
		}

		childPath := filepath.Join(directoryNode.Path, entryName)

		if directoryEntry.Type()&fs.ModeSymlink != 0 {
			if !scanner.options.IncludeSymlinks {
				continue
			}
			symlinkNode := &types.TreeNode{
				Path:      childPath,
				Name:      entryName,
				Kind:      types.NodeKindFile,
				Class:     types.ContentSymlink,
				Detail:    "symlink",
				Language:  types.LanguageNone,
				LineCount: types.LineCountUnknown,
				Selection: types.SelectionChecked,
				Parent:    directoryNode,
			}
			directoryNode.Children = append(directoryNode.Children, symlinkNode)
			scanner.reportProgress(childPath)
			continue
		}

		if isDirectory {
			childNode := &types.TreeNode{
				Path:      childPath,
				Name:      entryName,
				Kind:      types.NodeKindDirectory,
				Language:  types.LanguageNone,
				LineCount: types.LineCountUnknown,
				Selection: types.SelectionChecked,
				Parent:    directoryNode,
			}
			directoryNode.Children = append(directoryNode.Children, childNode)
			scheduled := group.TryGo(func() error {
				return scanner.scanDirectory(ctx, group, childNode, childRelativePath)
			})
			if !scheduled {
				if scanError := scanner.scanDirectory(ctx, group, childNode, childRelativePath); scanError != nil {
					return scanError
				}
			}
			continue
		}

		childNode := &types.TreeNode{
			Path:      childPath,
			Name:      entryName,
			Kind:      types.NodeKindFile,
			Language:  types.LanguageNone,
			LineCount: types.LineCountUnknown,
			Selection: types.SelectionChecked,
			Parent:    directoryNode,
		}
		directoryNode.Children = append(directoryNode.Children, childNode)
		scheduled := group.TryGo(func() error {
			return scanner.processFile(ctx, childNode)
		})
		if !scheduled {
			if processError := scanner.processFile(ctx, childNode); processError != nil {
				return processError
			}
		}
	}
	return nil
}

// processFile populates one file node, consulting the cache before touching
// file content. Oversized files are classified from metadata alone.
func (scanner *Scanner) processFile(ctx context.Context, fileNode *types.TreeNode) error {
	if contextError := ctx.Err(); contextError != nil {
		return contextError
	}
	scanner.reportProgress(fileNode.Path)

	fileInformation, statError := os.Stat(fileNode.Path)
	if statError != nil {
		scanner.markUnreadable(fileNode, statError)
		return nil
	}
	fileNode.SizeBytes = fileInformation.Size()

	if fileInformation.Size() > scanner.options.MaxFileSizeBytes {
		fileNode.Class = types.ContentTooLarge
		fileNode.Detail = "too large: " + utils.FormatFileSize(fileInformation.Size())
		scanner.fileCache.Put(fileNode.Path, cache.Entry{
			Path:      fileNode.Path,
			ModTime:   fileInformation.ModTime(),
			SizeBytes: fileInformation.Size(),
			Class:     types.ContentTooLarge,
			LineCount: types.LineCountUnknown,
			Detail:    fileNode.Detail,
		})
		return nil
	}

	if !scanner.fileCache.IsStale(fileNode.Path, fileInformation.ModTime(), fileInformation.Size()) {
		cachedEntry, _ := scanner.fileCache.Get(fileNode.Path)
		fileNode.Class = cachedEntry.Class
		fileNode.Content = cachedEntry.Content
		fileNode.LineCount = cachedEntry.LineCount
		fileNode.Detail = cachedEntry.Detail
		if cachedEntry.Class == types.ContentText {
			fileNode.Language = lang.Detect(fileNode.Path)
		}
		return nil
	}

	fileData, readError := os.ReadFile(fileNode.Path)
	if readError != nil {
		// Transient failures are not cached: a later scan should retry the read.
		scanner.fileCache.Delete(fileNode.Path)
		scanner.markUnreadable(fileNode, readError)
		return nil
	}

	entry := cache.Entry{
		Path:      fileNode.Path,
		ModTime:   fileInformation.ModTime(),
		SizeBytes: fileInformation.Size(),
		LineCount: types.LineCountUnknown,
	}
	if utils.IsBinary(fileData) {
		fileNode.Class = types.ContentBinary
		fileNode.Detail = "binary"
		entry.Class = types.ContentBinary
		entry.Detail = "binary"
	} else {
		fileNode.Class = types.ContentText
		fileNode.Content = string(fileData)
		fileNode.LineCount = countLines(fileData)
		fileNode.Language = lang.Detect(fileNode.Path)
		entry.Class = types.ContentText
		entry.Content = fileNode.Content
		entry.LineCount = fileNode.LineCount
	}
	scanner.fileCache.Put(fileNode.Path, entry)
	return nil
}

// markUnreadable records a per-node failure without aborting the scan.
func (scanner *Scanner) markUnreadable(fileNode *types.TreeNode, cause error) {
	fileNode.Class = types.ContentUnreadable
	fileNode.Detail = "unreadable"
	fileNode.LineCount = types.LineCountUnknown
	scanner.logger.Warn(fmt.Sprintf("skipping unreadable file %s: %v", fileNode.Path, cause))
}

// reportProgress bumps the visited counter and forwards it to the callback.
// The callback is serialized so collaborators need no locking of their own.
func (scanner *Scanner) reportProgress(currentPath string) {
	visited := scanner.visitedCount.Add(1)
	if scanner.options.Progress == nil {
		return
	}
	scanner.progressMutex.Lock()
	defer scanner.progressMutex.Unlock()
	scanner.options.Progress(int(visited), currentPath)
}

// countLines returns the number of newline-delimited lines in data. A file
// without a trailing newline still counts its final line; an empty file has
// zero lines.
func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	lineCount := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		lineCount++
	}
	return lineCount
}

// sortChildrenRecursively fixes child ordering after all workers finish:
// directories before files, case-insensitive name order. Completion order of
// sibling subtrees therefore never influences the final tree.
func sortChildrenRecursively(node *types.TreeNode) {
	sort.Slice(node.Children, func(leftIndex, rightIndex int) bool {
		leftChild := node.Children[leftIndex]
		rightChild := node.Children[rightIndex]
		if leftChild.IsDirectory() != rightChild.IsDirectory() {
			return leftChild.IsDirectory()
		}
		leftName := strings.ToLower(leftChild.Name)
		rightName := strings.ToLower(rightChild.Name)
		if leftName != rightName {
			return leftName < rightName
		}
		return leftChild.Name < rightChild.Name
	})
	for _, childNode := range node.Children {
		if childNode.IsDirectory() {
			sortChildrenRecursively(childNode)
		}
	}
}
