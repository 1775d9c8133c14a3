package availability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crime-hotspots/internal/month"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("Month\n"), 0o644))
}

func TestDirScanner(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "2024-04", "2024-04-west-yorkshire-street.csv"))
	touch(t, filepath.Join(dir, "2024-05-west-yorkshire-street.csv"))
	touch(t, filepath.Join(dir, "2024-07", "2024-07-west-yorkshire-outcomes.csv"))
	touch(t, filepath.Join(dir, "2024-09-notes.txt"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2024-08"), 0o755))

	m, err := DirScanner{Dir: dir}.LatestMonth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, month.MustParse("2024-05"), m)

	_, err = DirScanner{Dir: t.TempDir()}.LatestMonth(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPoliceAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/crimes-street-dates", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"date":"2024-06","stop-and-search":["avon-and-somerset"]},{"date":"2024-05","stop-and-search":[]},{"date":"bad"}]`))
	}))
	defer srv.Close()

	m, err := PoliceAPI{Client: srv.Client(), BaseURL: srv.URL + "/api"}.LatestMonth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, month.MustParse("2024-06"), m)
}

func TestPoliceAPIErrors(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	_, err := PoliceAPI{BaseURL: down.URL}.LatestMonth(context.Background())
	assert.Error(t, err)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer empty.Close()
	_, err = PoliceAPI{BaseURL: empty.URL}.LatestMonth(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestWithFallback(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	src := WithFallback{Primary: PoliceAPI{BaseURL: down.URL}, Fallback: Fixed{Month: month.MustParse("2023-12")}}
	m, err := src.LatestMonth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, month.MustParse("2023-12"), m)

	_, err = WithFallback{Primary: Fixed{}, Fallback: Fixed{}}.LatestMonth(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}
