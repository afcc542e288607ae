package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	"github.com/msto63/flatset/internal/auth"
	"github.com/msto63/flatset/internal/flat"
	"github.com/msto63/flatset/pkg/core/config"
)

func sampleFlats() []*flat.Flat {
	created := time.Date(2026, 10, 19, 9, 30, 0, 123456789, time.UTC)
	return []*flat.Flat{
		{
			ID: 1, Name: "Loft", Coordinates: flat.Coordinates{X: 3, Y: -317}, CreatedAt: created,
			Area: 80, Rooms: 3, IsNew: flat.Bool(true), TransitMinutes: 12.5, View: flat.ViewPark,
			House: &flat.House{Name: "Tower", Year: 1999, FlatsPerFloor: 4}, OwnerID: flat.Int64(7),
		},
		{
			ID: 4, Name: "Studio", Coordinates: flat.Coordinates{X: -1, Y: 0}, CreatedAt: created.Add(time.Hour),
			Area: 25, Rooms: 1, TransitMinutes: 0, View: flat.ViewStreet,
		},
	}
}

func assertSameFlats(t *testing.T, want, got []*flat.Flat) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "flat %d:\nwant %s\ngot  %s", i, want[i], got[i])
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, name := range []string{"flats.json", "flats.yaml", "flats.cbor"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewFileStore(filepath.Join(t.TempDir(), name), nil)

			require.NoError(t, s.Save(ctx, sampleFlats()))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assertSameFlats(t, sampleFlats(), got)
			assert.Contains(t, s.Describe(), FormatFor(name))
		})
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), nil)
	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flats.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidFormat))
}

func TestFileStoreRejectsInvalidRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flats.json")
	doc := `{"version":1,"flats":[{"id":1,"name":"x","coordinates":{"x":0,"y":-500},
		"creationDate":"2026-10-19T00:00:00Z","area":1,"numberOfRooms":1,"timeToMetroByTransport":1,"view":"BAD"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := NewFileStore(path, nil).Load(context.Background())
	require.Error(t, err)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeValidationFailed))
}

func openSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "flatset.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Save(ctx, sampleFlats()))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assertSameFlats(t, sampleFlats(), got)

	// a second save replaces the content
	require.NoError(t, s.Save(ctx, sampleFlats()[1:]))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assertSameFlats(t, sampleFlats()[1:], got)

	assert.NoError(t, s.Ping(ctx))
}

func TestSQLStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	var users auth.UserStore = s
	rec, err := users.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.Positive(t, rec.ID)

	_, err = users.CreateUser(ctx, "alice", "other")
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeDuplicateEntry))

	found, err := users.FindUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	_, err = users.FindUser(ctx, "bob")
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeNotFound))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fs, err := Open(ctx, config.StoreConfig{Backend: config.BackendFile, Path: filepath.Join(dir, "f.json")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fs)
	assert.IsType(t, &auth.MemoryUserStore{}, UsersFor(fs))

	ss, err := Open(ctx, config.StoreConfig{Backend: config.BackendSQLite, Path: filepath.Join(dir, "f.db")}, nil)
	require.NoError(t, err)
	defer ss.Close()
	assert.Same(t, ss, UsersFor(ss).(*SQLStore))

	_, err = Open(ctx, config.StoreConfig{Backend: "mongo"}, nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeConfigError))
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE b = ? AND c = ?`
	assert.Equal(t, q, dialectSQLite.rebind(q))
	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c = $2`, dialectPostgres.rebind(q))
}
