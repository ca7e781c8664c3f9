package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptree/promptree/internal/cache"
	"github.com/promptree/promptree/internal/types"
)

func writeTestFile(testingInstance *testing.T, path, content string) {
	testingInstance.Helper()
	if directoryError := os.MkdirAll(filepath.Dir(path), 0o755); directoryError != nil {
		testingInstance.Fatalf("creating directory for %s: %v", path, directoryError)
	}
	if writeError := os.WriteFile(path, []byte(content), 0o644); writeError != nil {
		testingInstance.Fatalf("writing %s: %v", path, writeError)
	}
}

func TestScanBuildsTree(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "a.py"), strings.Repeat("print('x')\n", 10))
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "b", "c.txt"), "one\ntwo\nthree")
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "b", "cache", "d.tmp"), "temp")

	scanner := New(Options{
		Root:           rootDirectory,
		IgnorePatterns: []string{"cache/"},
	}, nil)
	rootNode, scanError := scanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("Scan returned error: %v", scanError)
	}

	if !rootNode.IsDirectory() {
		testingInstance.Fatal("expected root node to be a directory")
	}
	if len(rootNode.Children) != 2 {
		testingInstance.Fatalf("root has %d children, expected 2", len(rootNode.Children))
	}

	// Directories sort before files.
	if rootNode.Children[0].Name != "b" || !rootNode.Children[0].IsDirectory() {
		testingInstance.Errorf("first child = %q, expected directory b", rootNode.Children[0].Name)
	}
	if rootNode.Children[1].Name != "a.py" {
		testingInstance.Errorf("second child = %q, expected a.py", rootNode.Children[1].Name)
	}

	pythonNode := rootNode.FindByPath(filepath.Join(rootDirectory, "a.py"))
	if pythonNode == nil {
		testingInstance.Fatal("a.py missing from tree")
	}
	if pythonNode.Class != types.ContentText || pythonNode.LineCount != 10 || pythonNode.Language != "python" {
		testingInstance.Errorf("a.py classified as %s, %d lines, language %q", pythonNode.Class, pythonNode.LineCount, pythonNode.Language)
	}
	if pythonNode.Selection != types.SelectionChecked {
		testingInstance.Error("expected every scanned node to default to checked")
	}
	if pythonNode.Parent != rootNode {
		testingInstance.Error("expected a.py parent pointer to reference the root")
	}

	textNode := rootNode.FindByPath(filepath.Join(rootDirectory, "b", "c.txt"))
	if textNode == nil {
		testingInstance.Fatal("b/c.txt missing from tree")
	}
	// The final line has no trailing newline but still counts.
	if textNode.LineCount != 3 {
		testingInstance.Errorf("c.txt line count = %d, expected 3", textNode.LineCount)
	}

	if rootNode.FindByPath(filepath.Join(rootDirectory, "b", "cache")) != nil {
		testingInstance.Error("expected cache/ directory to be pruned")
	}
	if rootNode.FindByPath(filepath.Join(rootDirectory, "b", "cache", "d.tmp")) != nil {
		testingInstance.Error("expected d.tmp inside pruned directory to be absent")
	}
}

func TestScanReusesCachedContent(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	filePath := filepath.Join(rootDirectory, "notes.txt")
	originalContent := "original content here\n"
	writeTestFile(testingInstance, filePath, originalContent)

	sharedCache := cache.New()
	firstScanner := New(Options{Root: rootDirectory}, sharedCache)
	if _, scanError := firstScanner.Scan(context.Background()); scanError != nil {
		testingInstance.Fatalf("first scan: %v", scanError)
	}

	// Rewrite with same-size content and restore the modification time; a
	// fresh cache entry means the second scan must not re-read the file.
	fileInformation, statError := os.Stat(filePath)
	if statError != nil {
		testingInstance.Fatalf("stat %s: %v", filePath, statError)
	}
	mutatedContent := "mutated  content here\n"
	if len(mutatedContent) != len(originalContent) {
		testingInstance.Fatal("test content lengths must match")
	}
	writeTestFile(testingInstance, filePath, mutatedContent)
	if chtimesError := os.Chtimes(filePath, fileInformation.ModTime(), fileInformation.ModTime()); chtimesError != nil {
		testingInstance.Fatalf("restoring modification time: %v", chtimesError)
	}

	secondScanner := New(Options{Root: rootDirectory}, sharedCache)
	rootNode, scanError := secondScanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("second scan: %v", scanError)
	}
	fileNode := rootNode.FindByPath(filePath)
	if fileNode == nil {
		testingInstance.Fatal("notes.txt missing from tree")
	}
	if fileNode.Content != originalContent {
		testingInstance.Errorf("expected cached content %q, got %q", originalContent, fileNode.Content)
	}
}

func TestScanDetectsStaleEntries(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	filePath := filepath.Join(rootDirectory, "notes.txt")
	writeTestFile(testingInstance, filePath, "before\n")

	sharedCache := cache.New()
	firstScanner := New(Options{Root: rootDirectory}, sharedCache)
	if _, scanError := firstScanner.Scan(context.Background()); scanError != nil {
		testingInstance.Fatalf("first scan: %v", scanError)
	}

	updatedContent := "after the edit\n"
	writeTestFile(testingInstance, filePath, updatedContent)

	secondScanner := New(Options{Root: rootDirectory}, sharedCache)
	rootNode, scanError := secondScanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("second scan: %v", scanError)
	}
	fileNode := rootNode.FindByPath(filePath)
	if fileNode == nil {
		testingInstance.Fatal("notes.txt missing from tree")
	}
	if fileNode.Content != updatedContent {
		testingInstance.Errorf("expected re-read content %q, got %q", updatedContent, fileNode.Content)
	}
	if fileNode.LineCount != 1 {
		testingInstance.Errorf("line count = %d, expected 1", fileNode.LineCount)
	}
}

func TestScanClassifiesOversizedFiles(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	filePath := filepath.Join(rootDirectory, "big.log")
	writeTestFile(testingInstance, filePath, strings.Repeat("x", 2048))

	scanner := New(Options{Root: rootDirectory, MaxFileSizeBytes: 1024}, nil)
	rootNode, scanError := scanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("Scan returned error: %v", scanError)
	}
	fileNode := rootNode.FindByPath(filePath)
	if fileNode == nil {
		testingInstance.Fatal("big.log missing from tree")
	}
	if fileNode.Class != types.ContentTooLarge {
		testingInstance.Errorf("class = %s, expected too large", fileNode.Class)
	}
	if fileNode.Content != "" {
		testingInstance.Error("expected oversized file content to stay empty")
	}
	if !strings.HasPrefix(fileNode.Detail, "too large: ") {
		testingInstance.Errorf("detail = %q, expected a formatted size", fileNode.Detail)
	}
}

func TestScanClassifiesBinaryFiles(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	filePath := filepath.Join(rootDirectory, "image.bin")
	writeTestFile(testingInstance, filePath, "head\x00tail")

	scanner := New(Options{Root: rootDirectory}, nil)
	rootNode, scanError := scanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("Scan returned error: %v", scanError)
	}
	fileNode := rootNode.FindByPath(filePath)
	if fileNode == nil {
		testingInstance.Fatal("image.bin missing from tree")
	}
	if fileNode.Class != types.ContentBinary {
		testingInstance.Errorf("class = %s, expected binary", fileNode.Class)
	}
	if fileNode.Content != "" {
		testingInstance.Error("expected binary file content to stay empty")
	}
}

func TestScanHandlesSymlinks(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	targetPath := filepath.Join(rootDirectory, "target.txt")
	writeTestFile(testingInstance, targetPath, "target\n")
	linkPath := filepath.Join(rootDirectory, "link.txt")
	if symlinkError := os.Symlink(targetPath, linkPath); symlinkError != nil {
		testingInstance.Skipf("symlinks unavailable: %v", symlinkError)
	}

	skippingScanner := New(Options{Root: rootDirectory}, nil)
	skippedRoot, scanError := skippingScanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("Scan returned error: %v", scanError)
	}
	if skippedRoot.FindByPath(linkPath) != nil {
		testingInstance.Error("expected symlink to be skipped by default")
	}

	recordingScanner := New(Options{Root: rootDirectory, IncludeSymlinks: true}, nil)
	recordedRoot, scanError := recordingScanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("Scan returned error: %v", scanError)
	}
	linkNode := recordedRoot.FindByPath(linkPath)
	if linkNode == nil {
		testingInstance.Fatal("expected symlink leaf with IncludeSymlinks")
	}
	if linkNode.Class != types.ContentSymlink || len(linkNode.Children) != 0 {
		testingInstance.Errorf("symlink node class = %s with %d children, expected untraversed symlink leaf", linkNode.Class, len(linkNode.Children))
	}
}

func TestScanCancelledContext(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "a.txt"), "a\n")

	cancelledContext, cancelFunction := context.WithCancel(context.Background())
	cancelFunction()

	scanner := New(Options{Root: rootDirectory}, nil)
	rootNode, scanError := scanner.Scan(cancelledContext)
	if !errors.Is(scanError, context.Canceled) {
		testingInstance.Fatalf("expected context.Canceled, got %v", scanError)
	}
	if rootNode == nil {
		testingInstance.Fatal("expected the partial tree alongside the cancellation error")
	}
}

func TestScanInvalidRoot(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	filePath := filepath.Join(rootDirectory, "plain.txt")
	writeTestFile(testingInstance, filePath, "content\n")

	fileRootScanner := New(Options{Root: filePath}, nil)
	if _, scanError := fileRootScanner.Scan(context.Background()); !errors.Is(scanError, ErrInvalidRoot) {
		testingInstance.Errorf("expected ErrInvalidRoot for a file root, got %v", scanError)
	}

	missingRootScanner := New(Options{Root: filepath.Join(rootDirectory, "missing")}, nil)
	if _, scanError := missingRootScanner.Scan(context.Background()); scanError == nil {
		testingInstance.Error("expected an error for a missing root")
	}
}

func TestScanMarksUnreadableFiles(testingInstance *testing.T) {
	if os.Geteuid() == 0 {
		testingInstance.Skip("permission bits do not restrict root")
	}
	rootDirectory := testingInstance.TempDir()
	filePath := filepath.Join(rootDirectory, "locked.txt")
	writeTestFile(testingInstance, filePath, "secret\n")
	if chmodError := os.Chmod(filePath, 0o000); chmodError != nil {
		testingInstance.Fatalf("chmod: %v", chmodError)
	}
	defer func() { _ = os.Chmod(filePath, 0o644) }()

	scanner := New(Options{Root: rootDirectory}, nil)
	rootNode, scanError := scanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("Scan returned error: %v", scanError)
	}
	fileNode := rootNode.FindByPath(filePath)
	if fileNode == nil {
		testingInstance.Fatal("locked.txt missing from tree")
	}
	if fileNode.Class != types.ContentUnreadable {
		testingInstance.Errorf("class = %s, expected unreadable", fileNode.Class)
	}
}

func TestScanReportsProgress(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "a.txt"), "a\n")
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "sub", "b.txt"), "b\n")

	var progressCalls int
	var highestVisited int
	scanner := New(Options{
		Root:        rootDirectory,
		Concurrency: 4,
		Progress: func(visitedCount int, currentPath string) {
			// The callback is serialized by the scanner.
			progressCalls++
			if visitedCount > highestVisited {
				highestVisited = visitedCount
			}
		},
	}, nil)
	if _, scanError := scanner.Scan(context.Background()); scanError != nil {
		testingInstance.Fatalf("Scan returned error: %v", scanError)
	}
	// Root directory, sub directory, and two files.
	if progressCalls != 4 {
		testingInstance.Errorf("progress called %d times, expected 4", progressCalls)
	}
	if highestVisited != progressCalls {
		testingInstance.Errorf("highest visited count %d does not match %d calls", highestVisited, progressCalls)
	}
}

func TestCountLines(testingInstance *testing.T) {
	testCases := []struct {
		testName      string
		data          string
		expectedLines int
	}{
		{testName: "empty file", data: "", expectedLines: 0},
		{testName: "single line with newline", data: "one\n", expectedLines: 1},
		{testName: "single line without newline", data: "one", expectedLines: 1},
		{testName: "multiple lines", data: "one\ntwo\nthree\n", expectedLines: 3},
		{testName: "trailing line unterminated", data: "one\ntwo", expectedLines: 2},
	}

	for _, testCase := range testCases {
		testingInstance.Run(testCase.testName, func(subTest *testing.T) {
			actualLines := countLines([]byte(testCase.data))
			if actualLines != testCase.expectedLines {
				subTest.Errorf("countLines(%q) = %d, expected %d", testCase.data, actualLines, testCase.expectedLines)
			}
		})
	}
}

func TestSortChildrenRecursively(testingInstance *testing.T) {
	rootDirectory := testingInstance.TempDir()
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "zebra.txt"), "z\n")
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "Alpha.txt"), "a\n")
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "beta", "inner.txt"), "i\n")
	writeTestFile(testingInstance, filepath.Join(rootDirectory, "Acorn", "inner.txt"), "i\n")

	scanner := New(Options{Root: rootDirectory}, nil)
	rootNode, scanError := scanner.Scan(context.Background())
	if scanError != nil {
		testingInstance.Fatalf("Scan returned error: %v", scanError)
	}

	expectedOrder := []string{"Acorn", "beta", "Alpha.txt", "zebra.txt"}
	if len(rootNode.Children) != len(expectedOrder) {
		testingInstance.Fatalf("root has %d children, expected %d", len(rootNode.Children), len(expectedOrder))
	}
	for childIndex, expectedName := range expectedOrder {
		if rootNode.Children[childIndex].Name != expectedName {
			testingInstance.Errorf("child %d = %q, expected %q", childIndex, rootNode.Children[childIndex].Name, expectedName)
		}
	}
}
