package cubecache

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/cube"
	"crime-hotspots/internal/geom"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/month"
)

var key = cube.CacheKey{Kind: catalog.HexKind(250), Latest: month.MustParse("2024-06")}

func sampleCube(n int) *cube.Cube {
	b := cube.NewBuilder(key.Kind)
	m := month.MustParse("2024-06")
	b.Add(cube.Key{Unit: "17", Month: m, Category: incident.Burglary}, n)
	b.Add(cube.Key{Unit: "3", Month: m.Add(-1), Category: incident.Drugs}, 2)
	return b.Cube()
}

func TestMemoryLayer(t *testing.T) {
	ctx := context.Background()
	s := NewBlobs("memory", NewMemory())

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, cube.ErrCacheMiss)

	require.NoError(t, s.Write(ctx, key, sampleCube(5)))
	require.NoError(t, s.Write(ctx, key, sampleCube(99)))
	got, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.True(t, sampleCube(5).Equal(got), "artifacts are immutable per key")

	require.NoError(t, s.Evict(ctx, key))
	ok, _ = s.Exists(ctx, key)
	assert.False(t, ok)
}

func TestFileLayer(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")
	s := NewBlobs("file", NewFile(dir))

	_, err := s.Read(ctx, key)
	assert.ErrorIs(t, err, cube.ErrCacheMiss)
	require.NoError(t, s.Write(ctx, key, sampleCube(5)))

	p := filepath.Join(dir, "crime_counts_hex-250_2024-06.cube")
	assert.FileExists(t, p)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")

	got, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Count("17", key.Latest, incident.Burglary))

	require.NoError(t, os.WriteFile(p, []byte("not a cube"), 0o644))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, cube.ErrCacheCorrupt)

	require.NoError(t, s.Evict(ctx, key))
	require.NoError(t, s.Evict(ctx, key))
	assert.NoFileExists(t, p)
}

func TestRedisLayer(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	s := NewBlobs("redis", NewRedis(client, "crimehot:", 0))
	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Write(ctx, key, sampleCube(5)))
	assert.True(t, mr.Exists("crimehot:crime_counts_hex-250_2024-06"))
	require.NoError(t, s.Write(ctx, key, sampleCube(7)))

	got, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.True(t, sampleCube(5).Equal(got))

	require.NoError(t, mr.Set("crimehot:crime_counts_hex-250_2024-06", "junk"))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, cube.ErrCacheCorrupt)

	require.NoError(t, s.Evict(ctx, key))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, cube.ErrCacheMiss)
}

func TestRedisLayerTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewBlobs("redis", NewRedis(client, "", time.Hour))
	require.NoError(t, s.Write(context.Background(), key, sampleCube(1)))
	assert.Greater(t, mr.TTL(key.String()).Seconds(), 0.0)
}

func TestPostgresLayer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	s := NewBlobs("postgres", NewPostgres(db))
	name := key.String()
	raw := cube.Encode(sampleCube(5))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM _cube_artifacts WHERE name = $1)`)).
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO _cube_artifacts").
		WithArgs(name, raw, len(raw)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM _cube_artifacts WHERE name = $1`)).
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(raw))
	mock.ExpectQuery("SELECT payload FROM _cube_artifacts").
		WithArgs(name).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))
	mock.ExpectExec("DELETE FROM _cube_artifacts").
		WithArgs(name).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Write(ctx, key, sampleCube(5)))
	got, err := s.Read(ctx, key)
	require.NoError(t, err)
	assert.True(t, sampleCube(5).Equal(got))
	_, err = s.Read(ctx, key)
	assert.ErrorIs(t, err, cube.ErrCacheMiss)
	require.NoError(t, s.Evict(ctx, key))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChainBackfillsEarlierLayers(t *testing.T) {
	ctx := context.Background()
	front := NewMemory()
	back := NewMemory()
	require.NoError(t, NewBlobs("back", back).Write(ctx, key, sampleCube(5)))

	ch := NewChain(NewBlobs("front", front), nil, NewBlobs("back", back))
	assert.Equal(t, 2, ch.Len())

	ok, err := ch.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := ch.Read(ctx, key)
	require.NoError(t, err)
	assert.True(t, sampleCube(5).Equal(got))
	has, _ := front.Has(ctx, key.String())
	assert.True(t, has, "front layer backfilled")
}

func TestChainReplacesCorruptLayer(t *testing.T) {
	ctx := context.Background()
	front := NewMemory()
	back := NewMemory()
	require.NoError(t, front.PutIfAbsent(ctx, key.String(), []byte("garbage")))
	require.NoError(t, NewBlobs("back", back).Write(ctx, key, sampleCube(5)))

	ch := NewChain(NewBlobs("front", front), NewBlobs("back", back))
	got, err := ch.Read(ctx, key)
	require.NoError(t, err)
	assert.True(t, sampleCube(5).Equal(got))

	b, err := front.Get(ctx, key.String())
	require.NoError(t, err)
	_, err = cube.Decode(b)
	assert.NoError(t, err, "corrupt front artifact replaced by backfill")

	only := NewChain(NewBlobs("front", NewMemory()))
	require.NoError(t, only.Write(ctx, key, sampleCube(1)))
	_, err = NewChain().Read(ctx, key)
	assert.ErrorIs(t, err, cube.ErrCacheMiss)
}

func TestChainWithBuildCached(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := catalog.Load(ctx, catalog.GridKind(1000), catalog.GridSource{
		Size:     1000,
		Boundary: geom.MultiPolygon{geom.Rect(0, 0, 2000, 2000)},
		CRS:      geom.BNG,
	}, geom.BNG)
	require.NoError(t, err)
	k := cube.CacheKey{Kind: c.Kind(), Latest: month.MustParse("2024-01")}
	loads := 0
	load := func(context.Context) (*incident.Store, error) {
		loads++
		return incident.NewStore(geom.BNG, []incident.Incident{
			{Month: k.Latest, Category: incident.Robbery, Point: geom.Point{X: 500, Y: 500}},
			{Month: k.Latest, Category: incident.Robbery, Point: geom.Point{X: 600, Y: 400}},
		}), nil
	}

	first, _, err := cube.BuildCached(ctx, NewChain(NewBlobs("memory", NewMemory()), NewBlobs("file", NewFile(dir))), k, c, load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, int64(2), first.Total())

	// a restarted process with an empty memory layer reads the file layer
	second, _, err := cube.BuildCached(ctx, NewChain(NewBlobs("memory", NewMemory()), NewBlobs("file", NewFile(dir))), k, c, load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.True(t, first.Equal(second))
}
