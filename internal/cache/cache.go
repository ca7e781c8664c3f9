// Package cache stores file content and metadata between scans so unchanged
// files are never read twice.
package cache

import (
	"sync"
	"time"

	"github.com/promptree/promptree/internal/types"
)

// Entry holds the cached outcome of reading one file, keyed by absolute path.
// An entry is valid only while the file's current modification time and size
// match the recorded values; any difference makes it stale and triggers a
// re-read rather than an error.
type Entry struct {
	Path      string
	ModTime   time.Time
	SizeBytes int64
	Class     types.ContentClass
	Content   string
	LineCount int
	Detail    string
}

// Cache is a concurrency-safe in-memory store of file entries. It holds no
// global state: callers construct one and pass it into each scan, so scans
// against different roots cannot interfere. Entries live only for the process
// lifetime.
type Cache struct {
	mutex   sync.RWMutex
	entries map[string]Entry
}

// New constructs an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Get returns the entry stored for absolutePath and whether one exists.
func (fileCache *Cache) Get(absolutePath string) (Entry, bool) {
	fileCache.mutex.RLock()
	defer fileCache.mutex.RUnlock()
	entry, exists := fileCache.entries[absolutePath]
	return entry, exists
}

// Put stores entry under absolutePath, overwriting any previous entry.
func (fileCache *Cache) Put(absolutePath string, entry Entry) {
	fileCache.mutex.Lock()
	defer fileCache.mutex.Unlock()
	fileCache.entries[absolutePath] = entry
}

// IsStale reports whether the cached entry for absolutePath no longer matches
// the file's current metadata. A missing entry is stale.
func (fileCache *Cache) IsStale(absolutePath string, currentModTime time.Time, currentSize int64) bool {
	fileCache.mutex.RLock()
	defer fileCache.mutex.RUnlock()
	entry, exists := fileCache.entries[absolutePath]
	if !exists {
		return true
	}
	return !entry.ModTime.Equal(currentModTime) || entry.SizeBytes != currentSize
}

// Delete removes the entry stored for absolutePath, if any.
func (fileCache *Cache) Delete(absolutePath string) {
	fileCache.mutex.Lock()
	defer fileCache.mutex.Unlock()
	delete(fileCache.entries, absolutePath)
}

// Clear drops every entry. Used for explicit rescans that bypass cached content.
func (fileCache *Cache) Clear() {
	fileCache.mutex.Lock()
	defer fileCache.mutex.Unlock()
	fileCache.entries = make(map[string]Entry)
}

// Len returns the number of stored entries.
func (fileCache *Cache) Len() int {
	fileCache.mutex.RLock()
	defer fileCache.mutex.RUnlock()
	return len(fileCache.entries)
}
