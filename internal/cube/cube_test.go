package cube

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crime-hotspots/internal/catalog"
	"crime-hotspots/internal/geom"
	"crime-hotspots/internal/incident"
	"crime-hotspots/internal/month"
)

var (
	jan = month.MustParse("2024-01")
	feb = month.MustParse("2024-02")
)

func sq(id string, x, y, size float64) catalog.RawUnit {
	return catalog.RawUnit{ID: id, Geometry: geom.MultiPolygon{geom.Rect(x, y, x+size, y+size)}}
}

// A B
// C D   (1 km cells)
func gridABCD(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.GridKind(1000), geom.BNG, []catalog.RawUnit{
		sq("A", 0, 1000, 1000), sq("B", 1000, 1000, 1000),
		sq("C", 0, 0, 1000), sq("D", 1000, 0, 1000),
	})
	require.NoError(t, err)
	return c
}

func at(x, y float64, m month.Month, c incident.Category) incident.Incident {
	return incident.Incident{Month: m, Category: c, Point: geom.Point{X: x, Y: y}}
}

func TestBuildPartitionInvariant(t *testing.T) {
	c := gridABCD(t)
	incs := []incident.Incident{
		at(100, 1100, jan, incident.Burglary),
		at(900, 1900, jan, incident.Burglary),
		at(1500, 1500, jan, incident.Burglary),
		at(1000, 1500, jan, incident.Burglary), // A|B edge
		at(1000, 1000, jan, incident.Burglary), // shared corner
		at(500, 500, feb, incident.Drugs),
		at(5000, 5000, jan, incident.Burglary), // outside
	}
	cb, st, err := Build(context.Background(), c, incident.NewStore(geom.BNG, incs))
	require.NoError(t, err)

	assert.Equal(t, 7, st.Incidents)
	assert.Equal(t, 6, st.Matched)
	assert.Equal(t, 1, st.Unmatched)
	assert.NotEmpty(t, st.RunID)
	assert.Equal(t, int64(6), cb.Total())
	assert.Equal(t, 5, cb.SliceTotal(jan, incident.Burglary))
	assert.Equal(t, 1, cb.Count("C", feb, incident.Drugs))
	assert.Equal(t, 0, cb.Count("C", jan, incident.Drugs))
	// even-odd is half-open: edge and corner points land in B only
	assert.Equal(t, 2, cb.Count("A", jan, incident.Burglary))
	assert.Equal(t, 3, cb.Count("B", jan, incident.Burglary))
	assert.Equal(t, []month.Month{jan, feb}, cb.Months())
	for _, e := range cb.Entries() {
		assert.Positive(t, e.Count)
	}
}

func TestBuildAdminCountsEveryContainingUnit(t *testing.T) {
	c, err := catalog.New(catalog.AdminKind(catalog.MSOA21), geom.BNG, []catalog.RawUnit{
		sq("E02000001", 0, 0, 1000),
		sq("E02000002", 500, 0, 1000),
	})
	require.NoError(t, err)
	cb, st, err := Build(context.Background(), c, incident.NewStore(geom.BNG, []incident.Incident{
		at(700, 500, jan, incident.Robbery),
		at(100, 500, jan, incident.Robbery),
	}))
	require.NoError(t, err)
	assert.Equal(t, 1, st.MultiMatched)
	assert.Equal(t, 2, cb.Count("E02000001", jan, incident.Robbery))
	assert.Equal(t, 1, cb.Count("E02000002", jan, incident.Robbery))
}

func TestBuildRejectsCRSMismatch(t *testing.T) {
	_, _, err := Build(context.Background(), gridABCD(t), incident.NewStore(geom.WebMercator, nil))
	assert.ErrorIs(t, err, ErrCoordinateSystemMismatch)
	assert.ErrorIs(t, err, geom.ErrCRSMismatch)
}

// lcg：确定性伪随机点，避免依赖 math/rand 的种子行为
func lcgIncidents(n int) []incident.Incident {
	out := make([]incident.Incident, n)
	x := uint64(42)
	next := func() float64 {
		x = x*6364136223846793005 + 1442695040888963407
		return float64(x>>11) / float64(1<<53)
	}
	cats := incident.Categories()
	for i := range out {
		out[i] = at(next()*2200-100, next()*2200-100, jan.Add(i%3), cats[i%len(cats)])
	}
	return out
}

func TestBuildDeterministicAcrossShards(t *testing.T) {
	c := gridABCD(t)
	store := incident.NewStore(geom.BNG, lcgIncidents(20000))

	a, sa, err := Build(context.Background(), c, store)
	require.NoError(t, err)
	b, sb, err := Build(context.Background(), c, store)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, Encode(a), Encode(b))
	assert.Equal(t, sa.Matched, sb.Matched)
	assert.Equal(t, 20000, sa.Matched+sa.Unmatched)
	assert.Equal(t, int64(sa.Matched), a.Total())
	assert.NotEqual(t, sa.RunID, sb.RunID)
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Build(ctx, gridABCD(t), incident.NewStore(geom.BNG, lcgIncidents(100)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCodecRoundTrip(t *testing.T) {
	cb, _, err := Build(context.Background(), gridABCD(t), incident.NewStore(geom.BNG, lcgIncidents(5000)))
	require.NoError(t, err)

	raw := Encode(cb)
	back, err := Decode(raw)
	require.NoError(t, err)
	assert.True(t, cb.Equal(back))
	assert.Equal(t, cb.Kind(), back.Kind())
	assert.Equal(t, raw, Encode(back))

	empty := NewBuilder(catalog.HexKind(125)).Cube()
	back, err = Decode(Encode(empty))
	require.NoError(t, err)
	assert.Equal(t, 0, back.Len())
	assert.Equal(t, catalog.HexKind(125), back.Kind())
}

func TestDecodeCorrupt(t *testing.T) {
	cb, _, err := Build(context.Background(), gridABCD(t), incident.NewStore(geom.BNG, lcgIncidents(500)))
	require.NoError(t, err)
	raw := Encode(cb)

	flipped := append([]byte(nil), raw...)
	flipped[len(flipped)/2] ^= 0xff
	for name, b := range map[string][]byte{
		"nil":       nil,
		"magic":     append([]byte("XXXXXX"), raw[6:]...),
		"truncated": raw[:len(raw)-5],
		"flipped":   flipped,
		"header":    raw[:len(magic)],
	} {
		_, err := Decode(b)
		assert.ErrorIs(t, err, ErrCacheCorrupt, name)
	}
}

func TestWindow(t *testing.T) {
	b := NewBuilder(catalog.GridKind(1000))
	b.Add(Key{Unit: "B", Month: jan, Category: incident.Drugs}, 2)
	b.Add(Key{Unit: "A", Month: feb, Category: incident.Drugs}, 3)
	b.Add(Key{Unit: "A", Month: jan, Category: incident.Drugs}, 1)
	b.Add(Key{Unit: "C", Month: jan, Category: incident.Robbery}, 9)
	b.Add(Key{Unit: "D", Month: jan, Category: incident.Drugs}, 0)
	cb := b.Cube()

	got := cb.Window(incident.Drugs, nil, []month.Month{jan, feb})
	assert.Equal(t, []Series{
		{Unit: "A", Counts: []int{1, 3}, Total: 4},
		{Unit: "B", Counts: []int{2, 0}, Total: 2},
	}, got)

	got = cb.Window(incident.Drugs, []string{"B", "C"}, []month.Month{jan, feb})
	assert.Equal(t, []Series{{Unit: "B", Counts: []int{2, 0}, Total: 2}}, got)
	assert.Equal(t, 4, cb.Len())
	assert.Equal(t, 3, cb.NumUnits())
}

type memStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	reads  int
	writes int
}

func newMemStore() *memStore { return &memStore{blobs: make(map[string][]byte)} }

func (m *memStore) Exists(_ context.Context, k CacheKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[k.String()]
	return ok, nil
}

func (m *memStore) Read(_ context.Context, k CacheKey) (*Cube, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	b, ok := m.blobs[k.String()]
	if !ok {
		return nil, ErrCacheMiss
	}
	return Decode(b)
}

func (m *memStore) Write(_ context.Context, k CacheKey, c *Cube) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if _, ok := m.blobs[k.String()]; ok {
		return nil
	}
	m.blobs[k.String()] = Encode(c)
	return nil
}

func (m *memStore) Evict(_ context.Context, k CacheKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, k.String())
	return nil
}

func TestCacheKeyString(t *testing.T) {
	assert.Equal(t, "crime_counts_hex-200_2024-06", CacheKey{Kind: catalog.HexKind(200), Latest: month.MustParse("2024-06")}.String())
	assert.Equal(t, "crime_counts_oa21_2025-01", CacheKey{Kind: catalog.AdminKind(catalog.OA21), Latest: month.MustParse("2025-01")}.String())
}

func TestBuildCachedHitSkipsIngestion(t *testing.T) {
	ctx := context.Background()
	c := gridABCD(t)
	store := newMemStore()
	key := CacheKey{Kind: c.Kind(), Latest: feb}
	loads := 0
	load := func(context.Context) (*incident.Store, error) {
		loads++
		return incident.NewStore(geom.BNG, lcgIncidents(1000)), nil
	}

	first, st, err := BuildCached(ctx, store, key, c, load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1000, st.Incidents)

	second, _, err := BuildCached(ctx, store, key, c, func(context.Context) (*incident.Store, error) {
		t.Fatal("incidents loaded on cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, store.writes)

	// advancing the latest month is a new key
	_, _, err = BuildCached(ctx, store, CacheKey{Kind: c.Kind(), Latest: feb.Add(1)}, c, load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Len(t, store.blobs, 2)
}

func TestBuildCachedRecoversFromCorruptArtifact(t *testing.T) {
	ctx := context.Background()
	c := gridABCD(t)
	store := newMemStore()
	key := CacheKey{Kind: c.Kind(), Latest: jan}
	store.blobs[key.String()] = []byte("CCUBE\x01garbage")

	cb, _, err := BuildCached(ctx, store, key, c, func(context.Context) (*incident.Store, error) {
		return incident.NewStore(geom.BNG, []incident.Incident{at(10, 10, jan, incident.Drugs)}), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cb.Count("C", jan, incident.Drugs))

	back, err := Decode(store.blobs[key.String()])
	require.NoError(t, err)
	assert.True(t, cb.Equal(back))
}

func TestBuildCachedPropagatesLoaderError(t *testing.T) {
	boom := errors.New("boom")
	c := gridABCD(t)
	_, _, err := BuildCached(context.Background(), newMemStore(), CacheKey{Kind: c.Kind(), Latest: jan}, c,
		func(context.Context) (*incident.Store, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, _, err = BuildCached(context.Background(), newMemStore(), CacheKey{Kind: catalog.HexKind(1), Latest: jan}, c, nil)
	assert.Error(t, err)
}

func ExampleCacheKey() {
	fmt.Println(CacheKey{Kind: catalog.GridKind(400), Latest: month.MustParse("2024-12")})
	// Output: crime_counts_grid-400_2024-12
}
