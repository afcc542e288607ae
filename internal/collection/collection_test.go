package collection

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	"github.com/msto63/flatset/internal/flat"
)

var fixed = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func newTestCollection() *Collection {
	return New(WithClock(func() time.Time { return fixed }))
}

func record(name string, area, rooms int64) *flat.Flat {
	return &flat.Flat{
		Name:           name,
		Coordinates:    flat.Coordinates{X: 10, Y: -100},
		Area:           area,
		Rooms:          rooms,
		TransitMinutes: 15.5,
		View:           flat.ViewPark,
	}
}

func TestInsertAssignsIncreasingIDs(t *testing.T) {
	c := newTestCollection()

	a, err := c.Insert(record("A", 75, 3))
	require.NoError(t, err)
	b, err := c.Insert(record("B", 40, 1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, fixed, a.CreatedAt)
	assert.Equal(t, 2, c.Len())
}

func TestIDsAreNotReused(t *testing.T) {
	c := newTestCollection()
	_, _ = c.Insert(record("A", 75, 3))
	_, _ = c.Insert(record("B", 75, 3))

	_, err := c.RemoveByID(2, nil)
	require.NoError(t, err)
	removed, _ := c.Clear(nil)
	assert.Equal(t, 1, removed)

	f, err := c.Insert(record("C", 75, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.ID)
}

func TestInsertRejectsInvalid(t *testing.T) {
	c := newTestCollection()
	bad := record("A", 0, 3)

	_, err := c.Insert(bad)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeValidationFailed))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.HighWater())
}

func TestInsertIf(t *testing.T) {
	c := newTestCollection()
	_, _ = c.Insert(record("A", 75, 3))

	isMax := func(cand *flat.Flat, cur View) bool {
		m := cur.Max()
		return m == nil || flat.Compare(cand, m) > 0
	}
	isMin := func(cand *flat.Flat, cur View) bool {
		m := cur.Min()
		return m == nil || flat.Compare(cand, m) < 0
	}

	added, ok, err := c.InsertIf(record("B", 10, 1), isMax)
	require.NoError(t, err)
	assert.True(t, ok, "tentative id makes the candidate the new maximum")
	assert.Equal(t, int64(2), added.ID)
	assert.Equal(t, 2, c.Len())

	_, ok, err = c.InsertIf(record("C", 10, 1), isMin)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(2), c.HighWater(), "rejection does not consume an id")
}

func TestRemoveByID(t *testing.T) {
	c := newTestCollection()
	_, _ = c.Insert(record("A", 75, 3))

	_, err := c.RemoveByID(42, nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeNotFound))

	denied := mdwerror.Forbidden("not yours")
	_, err = c.RemoveByID(1, func(*flat.Flat) error { return denied })
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, c.Len())

	f, err := c.RemoveByID(1, nil)
	require.NoError(t, err)
	assert.Equal(t, "A", f.Name)
	assert.Equal(t, 0, c.Len())
}

func TestRemoveIf(t *testing.T) {
	c := newTestCollection()
	for _, n := range []string{"A", "B", "C", "D"} {
		_, _ = c.Insert(record(n, 50, 2))
	}

	ref, _ := c.Get(2)
	removed, skipped := c.RemoveIf(
		func(f *flat.Flat) bool { return flat.Compare(f, ref) > 0 },
		func(f *flat.Flat) bool { return f.ID != 4 },
	)

	require.Len(t, removed, 1)
	assert.Equal(t, int64(3), removed[0].ID)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 3, c.Len())
}

func TestClearIsIdempotent(t *testing.T) {
	c := newTestCollection()
	_, _ = c.Insert(record("A", 50, 2))

	removed, _ := c.Clear(nil)
	assert.Equal(t, 1, removed)
	removed, _ = c.Clear(nil)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 0, c.Len())
}

func TestUpdateKeepsIdentity(t *testing.T) {
	c := newTestCollection()
	orig, _ := c.Insert(record("A", 50, 2))

	updated, err := c.Update(orig.ID, func(cur *flat.Flat) (*flat.Flat, error) {
		cur.Name = "Renamed"
		cur.ID = 99
		cur.CreatedAt = fixed.Add(time.Hour)
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Renamed", updated.Name)

	_, err = c.Update(orig.ID, func(cur *flat.Flat) (*flat.Flat, error) {
		cur.Area = -1
		return cur, nil
	})
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeValidationFailed))
	got, _ := c.Get(orig.ID)
	assert.Equal(t, int64(50), got.Area, "failed update leaves the record untouched")

	_, err = c.Update(404, func(cur *flat.Flat) (*flat.Flat, error) { return cur, nil })
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeNotFound))
}

func TestSnapshotIsDeepCopyOrderedByID(t *testing.T) {
	c := newTestCollection()
	for _, n := range []string{"A", "B", "C"} {
		f := record(n, 50, 2)
		f.House = &flat.House{Name: "H", Year: 2000, FlatsPerFloor: 3}
		_, _ = c.Insert(f)
	}

	snap := c.Snapshot()
	require.Len(t, snap, 3)
	for i, f := range snap {
		assert.Equal(t, int64(i+1), f.ID)
	}

	snap[0].House.Name = "mutated"
	got, _ := c.Get(1)
	assert.Equal(t, "H", got.House.Name)
}

func TestReplace(t *testing.T) {
	c := newTestCollection()

	a := record("A", 50, 2)
	a.ID, a.CreatedAt = 5, fixed
	b := record("B", 50, 2)
	b.ID, b.CreatedAt = 9, fixed
	require.NoError(t, c.Replace([]*flat.Flat{a, b}))
	assert.Equal(t, int64(9), c.HighWater())

	next, err := c.Insert(record("C", 50, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(10), next.ID)

	dup := record("D", 50, 2)
	dup.ID = 5
	err = c.Replace([]*flat.Flat{a, dup})
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeDuplicateEntry))
	assert.Equal(t, 3, c.Len(), "failed replace leaves content unchanged")
}

func TestMaxMin(t *testing.T) {
	c := newTestCollection()
	assert.Nil(t, c.Max())
	assert.Nil(t, c.Min())

	_, _ = c.Insert(record("A", 50, 2))
	_, _ = c.Insert(record("B", 10, 1))

	assert.Equal(t, int64(2), c.Max().ID)
	assert.Equal(t, int64(1), c.Min().ID)
}

func TestConcurrentInsertsGetUniqueIDs(t *testing.T) {
	c := newTestCollection()

	var wg sync.WaitGroup
	ids := make(chan int64, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := c.Insert(record("X", 50, 2))
			if err == nil {
				ids <- f.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, 200)
	assert.Equal(t, 200, c.Len())
}

func TestSnapshotAndMaxDuringConcurrentMutation(t *testing.T) {
	c := newTestCollection()
	const writers, rounds = 4, 50

	var (
		writersWG, readersWG sync.WaitGroup
		stop                 = make(chan struct{})
		mu                   sync.Mutex
		removed              int
	)
	for w := 0; w < writers; w++ {
		writersWG.Add(1)
		go func() {
			defer writersWG.Done()
			for i := 0; i < rounds; i++ {
				f, err := c.Insert(record("W", 50, 2))
				if !assert.NoError(t, err) {
					return
				}
				_, _ = c.Update(f.ID, func(cur *flat.Flat) (*flat.Flat, error) {
					cur.Area++
					return cur, nil
				})
				gone, _ := c.RemoveIf(func(x *flat.Flat) bool { return x.ID%3 == 0 }, func(*flat.Flat) bool { return true })
				mu.Lock()
				removed += len(gone)
				mu.Unlock()
			}
		}()
	}

	for r := 0; r < 4; r++ {
		readersWG.Add(1)
		go func() {
			defer readersWG.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := c.Snapshot()
				for i, f := range snap {
					if i > 0 {
						assert.Less(t, snap[i-1].ID, f.ID)
					}
					f.Name = "scribbled"
				}
				if m := c.Max(); m != nil {
					assert.NoError(t, m.Validate())
				}
			}
		}()
	}

	writersWG.Wait()
	close(stop)
	readersWG.Wait()

	assert.Equal(t, int64(writers*rounds), c.HighWater())
	assert.Equal(t, writers*rounds-removed, c.Len())
	for _, f := range c.Snapshot() {
		assert.Equal(t, "W", f.Name, "snapshot copies must not alias stored records")
		assert.Equal(t, int64(51), f.Area)
	}
}
