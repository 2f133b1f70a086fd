package input

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamdam-go/gamdam/internal/model"
	"github.com/gamdam-go/gamdam/internal/relpath"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func mustPath(t *testing.T, s string) relpath.Path {
	t.Helper()
	p, err := relpath.Normalize(s)
	require.NoError(t, err)
	return p
}

func TestReadParsesValidLines(t *testing.T) {
	data := `{"path":"a/b","url":"https://example.com/a"}
{"path":"c/d","url":"https://example.com/c","metadata":{"source":["mirror"]},"extra_urls":["https://mirror.example.com/c"]}
`
	var buf bytes.Buffer
	items, err := Read(strings.NewReader(data), testLogger(&buf))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a/b", items[0].Path.String())
	assert.Equal(t, []string{"mirror"}, items[1].Metadata["source"])
	assert.Equal(t, []string{"https://mirror.example.com/c"}, items[1].ExtraURLs)
	assert.Empty(t, buf.String())
}

func TestReadSkipsMalformedLineAndLogsLineNumber(t *testing.T) {
	data := "{\"path\":\"a/b\",\"url\":\"https://example.com/a\"}\nnot json\n{\"path\":\"c/d\",\"url\":\"https://example.com/c\"}\n"
	var buf bytes.Buffer
	items, err := Read(strings.NewReader(data), testLogger(&buf))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Contains(t, buf.String(), "line=2")
}

func TestReadSkipsMissingURLOrPath(t *testing.T) {
	data := "{\"path\":\"a/b\"}\n{\"url\":\"https://example.com/a\"}\n"
	var buf bytes.Buffer
	items, err := Read(strings.NewReader(data), testLogger(&buf))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReadSkipsBlankLines(t *testing.T) {
	data := "{\"path\":\"a/b\",\"url\":\"https://example.com/a\"}\n\n\n"
	var buf bytes.Buffer
	items, err := Read(strings.NewReader(data), testLogger(&buf))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestWriteFailuresRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "failures.jsonl")

	failed := []model.DownloadResult{
		{Downloadable: model.Downloadable{Path: mustPath(t, "a/b"), URL: "https://example.com/a"}, AddURL: model.Failed("404")},
		{Downloadable: model.Downloadable{Path: mustPath(t, "c/d"), URL: "https://example.com/c"}, AddURL: model.Failed("timeout")},
	}
	require.NoError(t, WriteFailures(path, failed))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	roundTripped, err := Read(bytes.NewReader(data), testLogger(&buf))
	require.NoError(t, err)
	require.Len(t, roundTripped, 2)
	assert.Equal(t, "a/b", roundTripped[0].Path.String())
	assert.Equal(t, "c/d", roundTripped[1].Path.String())
}

func TestOpenDashIsStdin(t *testing.T) {
	rc, err := Open("-")
	require.NoError(t, err)
	assert.NotNil(t, rc)
}
