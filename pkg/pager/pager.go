// Package pager implements the page and buffer-pool abstractions that back
// every page-oriented structure in this module: a fixed pool of in-memory
// frames, backed by a single page-aligned file, with pinning, dirty
// tracking, and an LRU replacement policy for eviction.
package pager

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"extendhash/pkg/config"
	"extendhash/pkg/list"

	"github.com/ncw/directio"
)

// Pagesize is the size, in bytes, of an individual page. Fixed at the
// platform's direct-I/O block size (4096 on Linux).
const Pagesize int64 = directio.BlockSize

// ErrRanOutOfPages is returned when every frame is pinned and none can be evicted.
var ErrRanOutOfPages = errors.New("no available pages")

// Pager is the buffer pool: it manages a fixed number of in-memory frames
// over a page-aligned backing file, fetching pages on demand and evicting
// via its LRUReplacer when the frame pool is full.
type Pager struct {
	file     *os.File // File descriptor for the backing file.
	numPages int64    // The number of pages allocated so far (both on disk and in memory).

	frames    []*Page              // Fixed-size array of in-memory frames; index is the frame id.
	freeList  *list.List[int64]    // Frame ids never yet assigned a page.
	pageTable map[int64]int64      // Maps page id -> frame id for resident pages.
	replacer  *LRUReplacer[int64]  // Victim policy over unpinned frames.
	ptMtx     sync.Mutex           // Guards frames, freeList, pageTable, and replacer together.
}

// New constructs a new Pager, backing it with a database file at filePath.
// See [*Pager.Open] for details on how the backing file is (re)opened.
func New(filePath string) (pager *Pager, err error) {
	pager = &Pager{}
	pager.pageTable = make(map[int64]int64)
	pager.freeList = list.NewList[int64]()
	pager.replacer = NewLRUReplacer[int64](config.MaxPagesInBuffer)
	pager.frames = make([]*Page, config.MaxPagesInBuffer)

	block := directio.AlignedBlock(int(Pagesize * config.MaxPagesInBuffer))
	for i := 0; i < config.MaxPagesInBuffer; i++ {
		frame := block[i*int(Pagesize) : (i+1)*int(Pagesize)]
		pager.frames[i] = &Page{pagenum: NoPage, dirty: false, data: frame}
		pager.freeList.PushTail(int64(i))
	}

	err = pager.Open(filePath)
	if err != nil {
		pager = nil
	}
	return
}

// GetFileName returns the path of the pager's backing file.
func (pager *Pager) GetFileName() string {
	return pager.file.Name()
}

// GetNumPages returns the number of pages allocated so far.
func (pager *Pager) GetNumPages() int64 {
	return pager.numPages
}

// Open (re-)initializes the pager with a database file at filePath,
// creating it if it doesn't already exist.
func (pager *Pager) Open(filePath string) (err error) {
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err = os.MkdirAll(filePath[:idx], 0775); err != nil {
			return err
		}
	}
	pager.file, err = directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	info, err := pager.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size%Pagesize != 0 {
		return errors.New("pager: backing file size is not a multiple of the page size")
	}
	pager.numPages = size / Pagesize
	return nil
}

// Close flushes every dirty page to disk and closes the backing file.
// Fails if any page is still pinned.
func (pager *Pager) Close() error {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()
	for pageID, frameID := range pager.pageTable {
		if pager.frames[frameID].PinCount() > 0 {
			return fmt.Errorf("pager: cannot close, page %d is still pinned", pageID)
		}
	}
	pager.flushAllPagesLocked()
	return pager.file.Close()
}

// NewPage allocates a fresh page, pins it once, and returns it. The caller
// must pair this with exactly one UnpinPage call.
func (pager *Pager) NewPage() (*Page, error) {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()

	pageID := pager.numPages
	page, frameID, err := pager.obtainFrameLocked(pageID)
	if err != nil {
		return nil, err
	}
	page.dirty = true
	pager.pageTable[pageID] = frameID
	pager.numPages++
	return page, nil
}

// FetchPage returns the page with the given id, pinning it. If the page is
// not already resident, it is read in from disk, possibly evicting another
// frame first. The caller must pair this with exactly one UnpinPage call.
func (pager *Pager) FetchPage(pageID int64) (*Page, error) {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()

	if pageID < 0 || pageID > pager.numPages-1 {
		return nil, errors.New("pager: invalid page id")
	}
	if frameID, ok := pager.pageTable[pageID]; ok {
		page := pager.frames[frameID]
		page.Get()
		pager.replacer.Pin(frameID)
		return page, nil
	}

	page, frameID, err := pager.obtainFrameLocked(pageID)
	if err != nil {
		return nil, err
	}
	page.dirty = false
	if err := pager.fillPageFromDisk(page); err != nil {
		pager.freeList.PushTail(frameID)
		return nil, err
	}
	pager.pageTable[pageID] = frameID
	return page, nil
}

// UnpinPage releases one reference to the page with the given id. isDirty
// records that the caller mutated the page since fetching it; the page's
// dirty bit, once set (whether by this call or by a prior [*Page.Update]),
// is only cleared by a flush. Returns false if the page isn't resident or
// its pin count was already zero.
func (pager *Pager) UnpinPage(pageID int64, isDirty bool) (bool, error) {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()

	frameID, ok := pager.pageTable[pageID]
	if !ok {
		return false, errors.New("pager: page not resident")
	}
	page := pager.frames[frameID]
	if isDirty {
		page.dirty = true
	}
	remaining := page.Put()
	if remaining < 0 {
		return false, errors.New("pager: pin count for page is negative")
	}
	if remaining == 0 {
		pager.replacer.Unpin(frameID)
	}
	return true, nil
}

// FlushPage writes a page's data to disk if it is dirty.
// Concurrency note: the page should be at least read-latched on entry.
func (pager *Pager) FlushPage(page *Page) {
	if !page.IsDirty() {
		return
	}
	pager.file.WriteAt(page.data, page.pagenum*Pagesize)
	page.SetDirty(false)
}

// FlushAllPages flushes every dirty resident page to disk.
func (pager *Pager) FlushAllPages() {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()
	pager.flushAllPagesLocked()
}

func (pager *Pager) flushAllPagesLocked() {
	for _, frameID := range pager.pageTable {
		pager.FlushPage(pager.frames[frameID])
	}
}

// obtainFrameLocked returns a frame to hold pageID, taking it from the free
// list first and falling back to the replacer's victim otherwise. ptMtx
// must be held by the caller.
func (pager *Pager) obtainFrameLocked(pageID int64) (page *Page, frameID int64, err error) {
	if freeLink := pager.freeList.PeekHead(); freeLink != nil {
		freeLink.PopSelf()
		frameID = freeLink.GetValue()
		page = pager.frames[frameID]
	} else {
		victimID, ok := pager.replacer.Victim()
		if !ok {
			return nil, 0, ErrRanOutOfPages
		}
		victim := pager.frames[victimID]
		pager.FlushPage(victim)
		delete(pager.pageTable, victim.pagenum)
		frameID = victimID
		page = victim
	}
	page.pagenum = pageID
	page.dirty = false
	page.pinCount.Store(1)
	return page, frameID, nil
}

// fillPageFromDisk reads a page's bytes in from the backing file.
func (pager *Pager) fillPageFromDisk(page *Page) error {
	if _, err := pager.file.Seek(page.pagenum*Pagesize, 0); err != nil {
		return err
	}
	if _, err := pager.file.Read(page.data); err != nil && err != io.EOF {
		return err
	}
	return nil
}
