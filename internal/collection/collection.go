// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     collection
// Description: Concurrent id-keyed flat collection with atomic operations
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package collection

import (
	"cmp"
	"slices"
	"sync"
	"time"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	"github.com/msto63/flatset/internal/flat"
)

// TypeName is reported by the info command
const TypeName = "map[int64]*flat.Flat (id-keyed set)"

// Collection holds flats keyed by ID. Every exported operation is atomic
// with respect to all others; records handed out are copies.
type Collection struct {
	mu        sync.RWMutex
	items     map[int64]*flat.Flat
	highWater int64
	createdAt time.Time
	now       func() time.Time
}

// Option configures a Collection
type Option func(*Collection)

// WithClock replaces time.Now for creation timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// New creates an empty collection
func New(opts ...Option) *Collection {
	c := &Collection{
		items: make(map[int64]*flat.Flat),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.createdAt = c.now()
	return c
}

// View is the read-only state handed to predicates while the write lock is
// held. It must not be retained.
type View interface {
	Len() int
	Max() *flat.Flat
	Min() *flat.Flat
}

type lockedView struct{ c *Collection }

func (v lockedView) Len() int { return len(v.c.items) }

func (v lockedView) Max() *flat.Flat { return v.c.extremeLocked(1) }

func (v lockedView) Min() *flat.Flat { return v.c.extremeLocked(-1) }

// CreatedAt returns the initialisation time of the collection
func (c *Collection) CreatedAt() time.Time {
	return c.createdAt
}

// Len returns the number of records
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// HighWater returns the largest ID ever held; new IDs are HighWater()+1
func (c *Collection) HighWater() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.highWater
}

// Get returns a copy of the record with the given ID
func (c *Collection) Get(id int64) (*flat.Flat, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.items[id]
	return f.Clone(), ok
}

// Snapshot returns copies of all records ordered by ID
func (c *Collection) Snapshot() []*flat.Flat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*flat.Flat, 0, len(c.items))
	for _, f := range c.items {
		out = append(out, f.Clone())
	}
	slices.SortFunc(out, func(a, b *flat.Flat) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Max returns a copy of the greatest record, or nil when empty
func (c *Collection) Max() *flat.Flat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.extremeLocked(1)
}

// Min returns a copy of the least record, or nil when empty
func (c *Collection) Min() *flat.Flat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.extremeLocked(-1)
}

func (c *Collection) extremeLocked(dir int) *flat.Flat {
	var best *flat.Flat
	for _, f := range c.items {
		if best == nil || flat.Compare(f, best)*dir > 0 {
			best = f
		}
	}
	return best.Clone()
}

// Insert validates f, assigns the next ID and stamps the creation time when
// unset. The stored copy is returned.
func (c *Collection) Insert(f *flat.Flat) (*flat.Flat, error) {
	added, _, err := c.InsertIf(f, nil)
	return added, err
}

// Tentative returns a copy of f carrying the identity it would receive if
// inserted now. Used to compare candidates against the collection.
func (c *Collection) Tentative(f *flat.Flat) *flat.Flat {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tentativeLocked(f)
}

func (c *Collection) tentativeLocked(f *flat.Flat) *flat.Flat {
	t := f.Clone()
	t.ID = c.highWater + 1
	if t.CreatedAt.IsZero() {
		t.CreatedAt = c.now()
	}
	return t
}

// InsertIf inserts f when pred, evaluated under the write lock against the
// tentative record, returns true. A nil pred always inserts.
func (c *Collection) InsertIf(f *flat.Flat, pred func(candidate *flat.Flat, current View) bool) (*flat.Flat, bool, error) {
	if f == nil {
		return nil, false, mdwerror.InvalidInput("record is missing")
	}
	if err := f.Validate(); err != nil {
		return nil, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	candidate := c.tentativeLocked(f)
	if pred != nil && !pred(candidate.Clone(), lockedView{c}) {
		return candidate, false, nil
	}

	c.items[candidate.ID] = candidate
	c.highWater = candidate.ID
	return candidate.Clone(), true, nil
}

// RemoveByID removes the record with the given ID. guard may veto the
// removal by returning an error, which is passed through.
func (c *Collection) RemoveByID(id int64, guard func(*flat.Flat) error) (*flat.Flat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.items[id]
	if !ok {
		return nil, mdwerror.NotFound("no flat with id %d", id).WithDetail("id", id)
	}
	if guard != nil {
		if err := guard(f.Clone()); err != nil {
			return nil, err
		}
	}
	delete(c.items, id)
	return f, nil
}

// RemoveIf removes every record matching match that allow accepts. Records
// that match but are not allowed are left in place and counted as skipped.
// A nil allow accepts everything.
func (c *Collection) RemoveIf(match, allow func(*flat.Flat) bool) (removed []*flat.Flat, skipped int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, f := range c.items {
		if !match(f) {
			continue
		}
		if allow != nil && !allow(f) {
			skipped++
			continue
		}
		delete(c.items, id)
		removed = append(removed, f)
	}
	slices.SortFunc(removed, func(a, b *flat.Flat) int { return cmp.Compare(a.ID, b.ID) })
	return removed, skipped
}

// Clear removes every record allow accepts; nil allow clears everything.
// IDs are not reused afterwards.
func (c *Collection) Clear(allow func(*flat.Flat) bool) (removed, skipped int) {
	gone, skipped := c.RemoveIf(func(*flat.Flat) bool { return true }, allow)
	return len(gone), skipped
}

// Update replaces the record with the given ID by the result of fn. fn gets
// a copy; the ID and creation time of its result are forced back to the
// stored values and the result must validate.
func (c *Collection) Update(id int64, fn func(current *flat.Flat) (*flat.Flat, error)) (*flat.Flat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.items[id]
	if !ok {
		return nil, mdwerror.NotFound("no flat with id %d", id).WithDetail("id", id)
	}

	next, err := fn(cur.Clone())
	if err != nil {
		return nil, err
	}
	next = next.Clone()
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	if err := next.Validate(); err != nil {
		return nil, err
	}

	c.items[id] = next
	return next.Clone(), nil
}

// Replace swaps the whole content, e.g. with records loaded from a store.
// IDs must be positive and unique and every record must validate; on error
// the collection is unchanged.
func (c *Collection) Replace(flats []*flat.Flat) error {
	items := make(map[int64]*flat.Flat, len(flats))
	var maxID int64
	for _, f := range flats {
		if f.ID <= 0 {
			return mdwerror.Newf("loaded flat has invalid id %d", f.ID).
				WithCode(mdwerror.CodeValidationFailed).WithDetail("id", f.ID)
		}
		if _, dup := items[f.ID]; dup {
			return mdwerror.Newf("duplicate flat id %d", f.ID).
				WithCode(mdwerror.CodeDuplicateEntry).WithDetail("id", f.ID)
		}
		if err := f.Validate(); err != nil {
			return mdwerror.Wrapf(err, "flat %d", f.ID)
		}
		items[f.ID] = f.Clone()
		maxID = max(maxID, f.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.highWater = max(c.highWater, maxID)
	return nil
}
