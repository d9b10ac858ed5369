package pager

import (
	"sync"
	"sync/atomic"
)

// NoPage is the page id used for a frame that holds no page.
const NoPage int64 = -1

// Page caches a single page of a pager's backing file in memory, along with
// the metadata the buffer pool needs to track it.
type Page struct {
	pagenum  int64        // Unique identifier for the page, and its offset (in pages) in the backing file.
	pinCount atomic.Int64 // The number of active references (pins) to this page.
	dirty    bool         // Whether the page's data has changed since it was last flushed to disk.
	rwlock   sync.RWMutex // Latch on the page's contents, used by callers (not the pager itself).
	data     []byte       // The page's raw bytes, PAGESIZE long.
}

// GetPageNum returns the page's pagenum (its unique identifier).
func (page *Page) GetPageNum() int64 {
	return page.pagenum
}

// IsDirty reports whether the page's data needs to be written to disk.
func (page *Page) IsDirty() bool {
	return page.dirty
}

// SetDirty changes the dirty status of a page.
func (page *Page) SetDirty(dirty bool) {
	page.dirty = dirty
}

// GetData returns the byte data held by the page.
func (page *Page) GetData() []byte {
	return page.data
}

// Get increments the pin count, indicating that another caller is using this page.
func (page *Page) Get() {
	page.pinCount.Add(1)
}

// Put decrements the pin count, indicating that a caller is done using this page.
func (page *Page) Put() int64 {
	return page.pinCount.Add(-1)
}

// PinCount returns the page's current pin count.
func (page *Page) PinCount() int64 {
	return page.pinCount.Load()
}

// Update writes `size` bytes of data into the page at the given offset, marking the page dirty.
func (page *Page) Update(data []byte, offset int64, size int64) {
	page.dirty = true
	copy(page.data[offset:offset+size], data)
}

// WLock acquires a writer's latch on the page.
func (page *Page) WLock() {
	page.rwlock.Lock()
}

// WUnlock releases a writer's latch on the page.
func (page *Page) WUnlock() {
	page.rwlock.Unlock()
}

// RLock acquires a reader's latch on the page.
func (page *Page) RLock() {
	page.rwlock.RLock()
}

// RUnlock releases a reader's latch on the page.
func (page *Page) RUnlock() {
	page.rwlock.RUnlock()
}
