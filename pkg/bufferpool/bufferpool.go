// Package bufferpool implements the engine's fixed-capacity page cache:
// LRU eviction, pin counts, and dirty tracking over a pkg/pager.Pager,
// per spec §4.2. Eviction only ever removes a page whose pin count is
// zero, walking from the least-recently-used end and skipping pinned
// pages — an idiom this module borrows from the corpus's hand-written
// buffer pools (see DESIGN.md) rather than from the teacher, whose own
// cache never pins pages at all.
package bufferpool

import (
	"container/list"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/lstorecore/lstore/internal/obs"
	"github.com/lstorecore/lstore/pkg/page"
	"github.com/lstorecore/lstore/pkg/pager"
)

// DefaultCapacity is the page count spec §4.2 suggests ("e.g., 1000
// pages").
const DefaultCapacity = 1000

type key struct {
	table string
	id    pager.ID
}

type frame struct {
	page  *page.Page
	pin   int
	dirty bool
	elem  *list.Element
}

// Stats summarizes bufferpool activity, mirroring the counters teacher's
// own BufferPoolStats exposes.
type Stats struct {
	Capacity  int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Bufferpool is a bounded, pin-aware LRU page cache.
type Bufferpool struct {
	mu       sync.Mutex
	capacity int
	frames   map[key]*frame
	lru      *list.List // front = most-recently-used, back = least
	pager    pager.Pager
	log      *obs.Logger

	hits, misses, evictions uint64
}

// New returns a Bufferpool with the given capacity backed by p. A nil
// logger falls back to a no-op logger.
func New(p pager.Pager, capacity int, logger *obs.Logger) *Bufferpool {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = obs.Nop()
	}
	return &Bufferpool{
		capacity: capacity,
		frames:   make(map[key]*frame, capacity),
		lru:      list.New(),
		pager:    p,
		log:      logger,
	}
}

// GetPage returns the page for (table, id), pinning it and marking it
// most-recently-used. Absent pages are loaded via the underlying pager
// (which itself degrades missing files to an empty page).
func (bp *Bufferpool) GetPage(table string, id pager.ID) (*page.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.getPageLocked(table, id)
}

func (bp *Bufferpool) getPageLocked(table string, id pager.ID) (*page.Page, error) {
	k := key{table, id}
	if fr, ok := bp.frames[k]; ok {
		bp.hits++
		fr.pin++
		bp.lru.MoveToFront(fr.elem)
		return fr.page, nil
	}

	bp.misses++
	if len(bp.frames) >= bp.capacity {
		if !bp.evictOneLocked() {
			bp.log.Warn("bufferpool over capacity, no unpinned page to evict", "table", table, "id", id.String())
		}
	}

	p, err := bp.pager.ReadPage(table, id)
	if err != nil {
		return nil, err
	}
	fr := &frame{page: p, pin: 1}
	fr.elem = bp.lru.PushFront(k)
	bp.frames[k] = fr
	return p, nil
}

// UnpinPage decrements the pin count for (table, id), never below zero.
func (bp *Bufferpool) UnpinPage(table string, id pager.ID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if fr, ok := bp.frames[key{table, id}]; ok && fr.pin > 0 {
		fr.pin--
	}
}

// MarkDirty flags (table, id) as dirty, if cached.
func (bp *Bufferpool) MarkDirty(table string, id pager.ID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if fr, ok := bp.frames[key{table, id}]; ok {
		fr.dirty = true
	}
}

// WriteToPage fetches the page, applies value at index (append when
// index < 0), and marks it dirty on success. The fetch-and-release is
// atomic from the caller's perspective: the pin taken to satisfy the
// access is released before WriteToPage returns.
func (bp *Bufferpool) WriteToPage(table string, id pager.ID, value int64, index int) (bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	p, err := bp.getPageLocked(table, id)
	if err != nil {
		return false, err
	}
	defer bp.unpinLocked(table, id)

	ok, err := p.Write(value, index)
	if err != nil {
		return false, err
	}
	if ok {
		bp.frames[key{table, id}].dirty = true
	}
	return ok, nil
}

// ReadFromPage fetches the page and reads the value at index.
func (bp *Bufferpool) ReadFromPage(table string, id pager.ID, index int) (int64, bool, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	p, err := bp.getPageLocked(table, id)
	if err != nil {
		return 0, false, err
	}
	defer bp.unpinLocked(table, id)

	v, ok := p.Read(index)
	return v, ok, nil
}

// GetNumRecords returns the slot count of (table, id).
func (bp *Bufferpool) GetNumRecords(table string, id pager.ID) (int, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	p, err := bp.getPageLocked(table, id)
	if err != nil {
		return 0, err
	}
	defer bp.unpinLocked(table, id)
	return p.Count(), nil
}

func (bp *Bufferpool) unpinLocked(table string, id pager.ID) {
	if fr, ok := bp.frames[key{table, id}]; ok && fr.pin > 0 {
		fr.pin--
	}
}

// evictOneLocked removes the least-recently-used unpinned page, flushing
// it first if dirty. Reports whether a candidate was found.
func (bp *Bufferpool) evictOneLocked() bool {
	for elem := bp.lru.Back(); elem != nil; elem = elem.Prev() {
		k := elem.Value.(key)
		fr := bp.frames[k]
		if fr.pin != 0 {
			continue
		}
		if fr.dirty {
			if err := bp.pager.WritePage(k.table, k.id, fr.page); err != nil {
				bp.log.Warn("failed to flush page during eviction, skipping candidate", "table", k.table, "id", k.id.String(), "err", err)
				continue
			}
		}
		bp.lru.Remove(elem)
		delete(bp.frames, k)
		bp.evictions++
		return true
	}
	return false
}

// Flush writes every dirty page to disk without closing the pager.
func (bp *Bufferpool) Flush() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	var errs error
	for k, fr := range bp.frames {
		if !fr.dirty {
			continue
		}
		if err := bp.pager.WritePage(k.table, k.id, fr.page); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flush %s/%s: %w", k.table, k.id, err))
			continue
		}
		fr.dirty = false
	}
	if errs != nil {
		bp.log.Error("bufferpool flush had partial failures", "err", errs)
	}
	return errs
}

// Close flushes all dirty pages and closes the underlying pager. Partial
// flush failures are logged and aggregated into the returned error but do
// not prevent the pager from being closed, matching spec §4.2's "partial
// failure is logged, not retried" contract.
func (bp *Bufferpool) Close() error {
	errs := bp.Flush()
	if err := bp.pager.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// Stats reports current cache statistics.
func (bp *Bufferpool) Stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	return Stats{
		Capacity:  bp.capacity,
		Size:      len(bp.frames),
		Hits:      bp.hits,
		Misses:    bp.misses,
		Evictions: bp.evictions,
	}
}
