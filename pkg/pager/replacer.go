package pager

import (
	"sync"

	"extendhash/pkg/list"
)

// LRUReplacer tracks unpinned frames and picks a victim for eviction using a
// least-recently-unpinned policy. It is generic over the frame-id type so
// the same bookkeeping can back a fixed-capacity "least-recently-unpinned"
// policy over any comparable key, though the buffer pool below only ever
// instantiates it over int64 frame ids.
//
// A frame appears in the replacer at most once, and only while it is
// eligible for eviction (no outstanding pins); Pin and Victim both remove
// it, Unpin is the only way to add it back.
type LRUReplacer[T comparable] struct {
	capacity int
	dlink    *list.List[T]
	posMap   map[T]*list.Link[T]
	mu       sync.Mutex
}

// NewLRUReplacer constructs a replacer with room for up to capacity unpinned frames.
func NewLRUReplacer[T comparable](capacity int) *LRUReplacer[T] {
	return &LRUReplacer[T]{
		capacity: capacity,
		dlink:    list.NewList[T](),
		posMap:   make(map[T]*list.Link[T]),
	}
}

// Victim removes and returns the least-recently-unpinned frame id.
// Returns false if the replacer is empty.
func (r *LRUReplacer[T]) Victim() (frameID T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tail := r.dlink.PeekTail()
	if tail == nil {
		var zero T
		return zero, false
	}
	frameID = tail.GetValue()
	delete(r.posMap, frameID)
	tail.PopSelf()
	return frameID, true
}

// Pin removes frameID from the replacer, if present, indicating that the
// frame is now in use and may not be evicted.
func (r *LRUReplacer[T]) Pin(frameID T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, found := r.posMap[frameID]
	if !found {
		return
	}
	delete(r.posMap, frameID)
	link.PopSelf()
}

// Unpin inserts frameID into the replacer as the most-recently-unpinned
// entry, unless it is already present or the replacer is at capacity.
func (r *LRUReplacer[T]) Unpin(frameID T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.posMap[frameID]; found {
		return
	}
	if len(r.posMap) >= r.capacity {
		return
	}
	r.posMap[frameID] = r.dlink.PushHead(frameID)
}

// Size returns the number of frames currently eligible for eviction.
func (r *LRUReplacer[T]) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.posMap)
}
