package docstore

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/internal/testutil"
	"github.com/teranos/atomdb/storage"
	"github.com/teranos/atomdb/storage/storagetest"
)

// setupTestStore returns a Store over an in-memory SQLite database and a
// miniredis instance.
func setupTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	opts = append([]Option{WithLogger(zaptest.NewLogger(t).Sugar())}, opts...)
	return New(testutil.SetupTestDB(t), rdb, opts...), mr
}

func TestBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		s, _ := setupTestStore(t)
		return s
	})
}

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	s, err := Open(ctx, Config{
		DatabasePath: filepath.Join(t.TempDir(), "atoms.db"),
		RedisURL:     fmt.Sprintf("redis://%s", mr.Addr()),
	})
	require.NoError(t, err)

	_, err = s.AddLink(ctx, storage.Link("Inheritance", storage.Node("Concept", "human"), storage.Node("Concept", "mammal")))
	require.NoError(t, err)
	assert.NotEmpty(t, mr.Keys())

	require.NoError(t, s.Close())
}

func TestOpen_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), Config{
		DatabasePath: filepath.Join(t.TempDir(), "atoms.db"),
		RedisURL:     fmt.Sprintf("redis://%s", addr),
	})
	require.Error(t, err)
	assert.True(t, errors.IsConnectionError(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestOpen_BadRedisURL(t *testing.T) {
	_, err := Open(context.Background(), Config{
		DatabasePath: filepath.Join(t.TempDir(), "atoms.db"),
		RedisURL:     "not-a-url",
	})
	assert.Error(t, err)
}

func TestKeyPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	a := New(testutil.SetupTestDB(t), rdb, WithKeyPrefix("a"))
	b := New(testutil.SetupTestDB(t), rdb, WithKeyPrefix("b"))

	_, err := a.AddLink(ctx, storage.Link("Inheritance", storage.Node("Concept", "x"), storage.Node("Concept", "y")))
	require.NoError(t, err)
	_, err = b.AddLink(ctx, storage.Link("Inheritance", storage.Node("Concept", "x"), storage.Node("Concept", "y")))
	require.NoError(t, err)

	require.NoError(t, a.ClearDatabase(ctx))

	for _, k := range mr.Keys() {
		assert.Regexp(t, `^b:`, k)
	}
	matches, err := b.GetMatchedType(ctx, "Inheritance", storage.MatchOptions{})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestIncomingLinks_SSCANPaging(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)

	// enough members to leave Redis's compact set encoding
	var want []hasher.Handle
	for i := 0; i < 300; i++ {
		l, err := s.AddLink(ctx, storage.Link("Member", storage.Node("Concept", "hub"), storage.Node("Concept", fmt.Sprintf("n%03d", i))))
		require.NoError(t, err)
		want = append(want, l.Handle)
	}
	slices.Sort(want)

	hub := testutil.Concept("hub")
	seen := map[hasher.Handle]bool{}
	req := storage.PageRequest{ChunkSize: 25}
	pages := 0
	for {
		page, err := s.GetIncomingLinks(ctx, hub, req)
		require.NoError(t, err)
		pages++
		for _, h := range page.Items {
			seen[h] = true
		}
		if page.Done() {
			break
		}
		req.Cursor = page.Cursor
		require.Less(t, pages, 1000)
	}

	var got []hasher.Handle
	for h := range seen {
		got = append(got, h)
	}
	slices.Sort(got)
	assert.Equal(t, want, got)
}

func TestFieldIndex_RejectsUnsafeField(t *testing.T) {
	s, _ := setupTestStore(t)
	_, err := s.CreateFieldIndex(context.Background(), "Concept", "legs'); DROP TABLE atoms; --")
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestFieldIndex_BoolAndString(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)
	for _, p := range []storage.Params{
		{Type: "Concept", Name: "bat", Attributes: map[string]any{"flies": true, "class": "mammal"}},
		{Type: "Concept", Name: "cat", Attributes: map[string]any{"flies": false, "class": "mammal"}},
	} {
		_, err := s.AddNode(ctx, p)
		require.NoError(t, err)
	}
	id, err := s.CreateFieldIndex(ctx, "Concept", "flies")
	require.NoError(t, err)

	got, err := s.GetAtomsByIndex(ctx, id, []storage.Condition{{Field: "flies", Value: true}, {Field: "class", Value: "mammal"}})
	require.NoError(t, err)
	assert.Equal(t, []hasher.Handle{testutil.Concept("bat")}, got)
}

func TestGetAtom_DatabaseError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := New(sqlDB, nil)
	h := testutil.Concept("human")

	mock.ExpectQuery(regexp.QuoteMeta(atomSelectQuery)).
		WithArgs(h).
		WillReturnError(fmt.Errorf("disk I/O error"))

	_, err = s.GetAtom(context.Background(), h)
	require.Error(t, err)
	assert.False(t, errors.IsNotFoundError(err), "storage failures are not misses")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAtom_Missing(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := New(sqlDB, nil)
	h := testutil.Concept("human")

	mock.ExpectQuery(regexp.QuoteMeta(atomSelectQuery)).
		WithArgs(h).
		WillReturnRows(sqlmock.NewRows([]string{"handle"}))

	_, err = s.GetAtom(context.Background(), h)
	assert.True(t, errors.IsNotFoundError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAtoms_Sqlmock(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := New(sqlDB, nil)
	mock.ExpectQuery(regexp.QuoteMeta(atomCountQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"kind", "count"}).
			AddRow("link", 26).
			AddRow("node", 14))

	counts, err := s.CountAtoms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Nodes: 14, Links: 26}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddNode_InsertError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	s := New(sqlDB, nil)
	h := testutil.Concept("human")

	mock.ExpectQuery(regexp.QuoteMeta(atomSelectQuery)).
		WithArgs(h).
		WillReturnRows(sqlmock.NewRows([]string{"handle"}))
	mock.ExpectExec(regexp.QuoteMeta(atomInsertQuery)).
		WithArgs(h, "node", "Concept", hasher.NamedTypeHash("Concept"), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), true, "{}").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrBusy})

	_, err = s.AddNode(context.Background(), storage.Node("Concept", "human"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout), "busy database surfaces as a timeout: %v", err)
	assert.Contains(t, err.Error(), "failed to insert atom")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClosedDatabase(t *testing.T) {
	ctx := context.Background()
	s, _ := setupTestStore(t)
	_, err := s.AddNode(ctx, storage.Node("Concept", "human"))
	require.NoError(t, err)
	require.NoError(t, s.db.Close())

	_, err = s.GetAtom(ctx, testutil.Concept("human"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrClosed), "got %v", err)
	assert.False(t, errors.IsNotFoundError(err))

	_, err = s.CountAtoms(ctx)
	assert.True(t, errors.Is(err, errors.ErrClosed), "got %v", err)
}

func TestRedisFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	s, mr := setupTestStore(t)
	testutil.LoadAnimals(t, s)

	mr.SetError("LOADING Redis is loading the dataset in memory")
	_, err := s.GetMatchedType(ctx, "Inheritance", storage.MatchOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsConnectionError(err))

	mr.SetError("")
	matches, err := s.GetMatchedType(ctx, "Inheritance", storage.MatchOptions{})
	require.NoError(t, err)
	assert.Len(t, matches, len(testutil.AnimalInheritance))
}
