package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamdam-go/gamdam/internal/model"
	"github.com/gamdam-go/gamdam/internal/relpath"
)

func mustPath(t *testing.T, s string) relpath.Path {
	t.Helper()
	p, err := relpath.Normalize(s)
	require.NoError(t, err)
	return p
}

func readBack(t *testing.T, path string) []model.DownloadResult {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	zr, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	var out []model.DownloadResult
	scanner := bufio.NewScanner(zr)
	for scanner.Scan() {
		var r model.DownloadResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		out = append(out, r)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestAppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl.zst")
	j, err := Open(path)
	require.NoError(t, err)

	r1 := model.DownloadResult{Downloadable: model.Downloadable{Path: mustPath(t, "a/b"), URL: "https://example.com/a"}, AddURL: model.Ok()}
	r2 := model.DownloadResult{Downloadable: model.Downloadable{Path: mustPath(t, "c/d"), URL: "https://example.com/c"}, AddURL: model.Failed("404")}

	require.NoError(t, j.Append(r1))
	require.NoError(t, j.Append(r2))
	require.NoError(t, j.Close())

	results := readBack(t, path)
	require.Len(t, results, 2)
	assert.Equal(t, "a/b", results[0].Downloadable.Path.String())
	assert.True(t, results[0].AddURL.OK)
	assert.Equal(t, "c/d", results[1].Downloadable.Path.String())
	assert.False(t, results[1].AddURL.OK)
}

func TestAppendIsConcurrencySafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl.zst")
	j, err := Open(path)
	require.NoError(t, err)

	const n = 50
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			done <- j.Append(model.DownloadResult{
				Downloadable: model.Downloadable{Path: mustPath(t, "p"), URL: "https://example.com/x"},
			})
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}
	require.NoError(t, j.Close())

	results := readBack(t, path)
	assert.Len(t, results, n)
}
