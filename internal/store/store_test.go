package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/permstore/internal/lifecycle"
	"github.com/roach88/permstore/internal/testutil"
)

func TestNew_DoesNotBlock(t *testing.T) {
	opts := testOptions(t)
	opts.BlockedTimeout = 300 * time.Millisecond
	path := lifecycle.DatabasePath(opts.Dir, "sounds")
	testutil.CreateDatabase(t, path, 1, "sounds")
	testutil.HoldLock(t, path+".lock", true)

	start := time.Now()
	s := NewStrings("sounds", opts)
	assert.Less(t, time.Since(start), time.Second, "New must return before initialization finishes")
	t.Cleanup(func() { s.Close() })
}

func TestReady_CreatesDatabase(t *testing.T) {
	opts := testOptions(t)
	s := createTestStore(t, "sounds", opts)

	require.NoError(t, s.Ready(context.Background()))
	assert.Equal(t, "sounds", s.Name())

	_, err := os.Stat(lifecycle.DatabasePath(opts.Dir, "sounds"))
	assert.NoError(t, err)
}

func TestScenario_SoundsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t, "sounds", testOptions(t))

	require.NoError(t, s.Set(ctx, "B001C000S000", "AAAA=="))

	got, found := s.Get(ctx, "B001C000S000")
	require.True(t, found)
	assert.Equal(t, "AAAA==", got)

	assert.False(t, s.Has(ctx, "missing"))

	s.Delete(ctx, "B001C000S000")

	_, found = s.Get(ctx, "B001C000S000")
	assert.False(t, found)
}

func TestInitializationFailure_PropagatesToEveryOperation(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	opts.BlockedTimeout = 100 * time.Millisecond
	path := lifecycle.DatabasePath(opts.Dir, "sounds")
	testutil.CreateDatabase(t, path, 1, "sounds")
	testutil.HoldLock(t, path+".lock", true)

	s := createTestStore(t, "sounds", opts)

	err := s.Ready(ctx)
	require.Error(t, err)
	assert.True(t, lifecycle.IsBlocked(err), "expected BLOCKED, got %v", err)

	setErr := s.Set(ctx, "k", "v")
	require.Error(t, setErr)
	assert.True(t, lifecycle.IsBlocked(setErr), "Set must fail with the initialization cause")

	_, found := s.Get(ctx, "k")
	assert.False(t, found)
	assert.False(t, s.Has(ctx, "k"))
	assert.Empty(t, s.Keys(ctx))
	assert.Empty(t, s.Entries(ctx))
	assert.Equal(t, 0, s.Count(ctx))
}

func TestConcurrentConstruction_SharesCollection(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	a := createTestStore(t, "sounds", opts)
	b := createTestStore(t, "sounds", opts)

	require.NoError(t, a.Set(ctx, "from-a", "1"))
	require.NoError(t, b.Set(ctx, "from-b", "2"))

	assert.Equal(t, []string{"from-a", "from-b"}, a.Keys(ctx))
	assert.Equal(t, []string{"from-a", "from-b"}, b.Keys(ctx))
	assert.Equal(t, 1, testutil.Version(t, lifecycle.DatabasePath(opts.Dir, "sounds")))
}

func TestUpgradePath_ExistingDatabaseWithoutCollection(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)
	path := lifecycle.DatabasePath(opts.Dir, "sounds")
	testutil.CreateDatabase(t, path, 2, "legacy")

	s := createTestStore(t, "sounds", opts)

	require.NoError(t, s.Set(ctx, "k", "v"))
	got, found := s.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, "v", got)

	assert.Equal(t, 3, testutil.Version(t, path))
	assert.True(t, testutil.TableExists(t, path, "sounds"))
}

func TestVersionChange_InvalidatesStore(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	s := createTestStore(t, "sounds", opts)
	require.NoError(t, s.Set(ctx, "k", "v"))

	// Another component adds a collection to the same database.
	other, err := lifecycle.Open(ctx, "sounds", "voices", opts)
	require.NoError(t, err)
	t.Cleanup(func() { other.Close() })

	err = s.Set(ctx, "k2", "v2")
	require.Error(t, err)
	assert.True(t, lifecycle.IsClosed(err), "expected closed connection error, got %v", err)

	_, found := s.Get(ctx, "k")
	assert.False(t, found, "reads after invalidation degrade to misses")
	assert.True(t, lifecycle.IsClosed(s.Ready(ctx)))
}

func TestClose_ThenOperations(t *testing.T) {
	ctx := context.Background()
	s := NewStrings("sounds", testOptions(t))
	require.NoError(t, s.Set(ctx, "k", "v"))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Set(ctx, "k", "v2")
	assert.True(t, lifecycle.IsClosed(err))
	assert.False(t, s.Has(ctx, "k"))
}

func TestPersistence_AcrossInstances(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	first := NewStrings("texts", opts)
	require.NoError(t, first.Set(ctx, "https://example.org/book1.txt", "In the beginning"))
	require.NoError(t, first.Close())

	second := createTestStore(t, "texts", opts)
	got, found := second.Get(ctx, "https://example.org/book1.txt")
	require.True(t, found)
	assert.Equal(t, "In the beginning", got)
}

func TestStores_AreIsolatedByName(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	texts := createTestStore(t, "texts", opts)
	sounds := createTestStore(t, "sounds", opts)

	require.NoError(t, texts.Set(ctx, "k", "text"))
	require.NoError(t, sounds.Set(ctx, "k", "sound"))

	got, _ := texts.Get(ctx, "k")
	assert.Equal(t, "text", got)
	got, _ = sounds.Get(ctx, "k")
	assert.Equal(t, "sound", got)
}
