package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamdam-go/gamdam/internal/model"
	"github.com/gamdam-go/gamdam/internal/relpath"
)

// fakeAnnexScript is a POSIX-sh stand-in for the three `git-annex --batch
// --json` workers. It understands just enough of each protocol (one line
// in, one JSON line out) to drive the pipeline end to end:
//
//   - addurl: a path containing "nokey" completes successfully with no
//     key; a url containing "fail" completes with success=false; anything
//     else succeeds with a deterministic key derived from the path.
//   - metadata: a key containing "badmeta" fails; anything else succeeds.
//   - registerurl: a url containing "badreg" fails; anything else succeeds.
const fakeAnnexScript = `#!/bin/sh
cmd="$1"
case "$cmd" in
addurl)
  while IFS= read -r line; do
    url="${line% *}"
    path="${line##* }"
    case "$path" in
      *nokey*) printf '{"command":"addurl","file":"%s","input":["%s"],"success":true,"note":"already present"}\n' "$path" "$line" ;;
      *) case "$url" in
           *fail*) printf '{"command":"addurl","file":"%s","input":["%s"],"success":false,"error-messages":["404 Not Found"]}\n' "$path" "$line" ;;
           *) key=$(printf '%s' "$path" | tr '/' '_')
              printf '{"command":"addurl","file":"%s","input":["%s"],"key":"SHA256E-s0--%s","success":true}\n' "$path" "$line" "$key" ;;
         esac ;;
    esac
  done
  ;;
metadata)
  while IFS= read -r line; do
    key=$(printf '%s' "$line" | sed -n 's/.*"key":"\([^"]*\)".*/\1/p')
    case "$key" in
      *badmeta*) printf '{"command":"metadata","key":"%s","success":false,"error-messages":["unknown key"]}\n' "$key" ;;
      *) printf '{"command":"metadata","key":"%s","fields":{},"success":true}\n' "$key" ;;
    esac
  done
  ;;
registerurl)
  while IFS= read -r line; do
    key="${line% *}"
    url="${line##* }"
    case "$url" in
      *badreg*) printf '{"command":"registerurl","success":false,"error-messages":["bad url"]}\n' ;;
      *) printf '{"command":"registerurl","success":true}\n' ;;
    esac
  done
  ;;
esac
`

func writeFakeAnnex(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-git-annex")
	require.NoError(t, os.WriteFile(path, []byte(fakeAnnexScript), 0o755))
	return path
}

func mustPath(t *testing.T, s string) relpath.Path {
	t.Helper()
	p, err := relpath.Normalize(s)
	require.NoError(t, err)
	return p
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestDownloadAllSuccess(t *testing.T) {
	bin := writeFakeAnnex(t)
	items := []model.Downloadable{
		{Path: mustPath(t, "a/one"), URL: "https://example.com/1", Metadata: map[string][]string{"source": {"mirror"}}},
		{Path: mustPath(t, "b/two"), URL: "https://example.com/2", ExtraURLs: []string{"https://mirror.example.com/2"}},
		{Path: mustPath(t, "c/three"), URL: "https://example.com/3"},
	}

	report, err := Download(context.Background(), items, Options{
		AnnexBin: bin,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	assert.Len(t, report.Successful, 3)
	assert.Empty(t, report.Failed)

	byPath := map[string]model.DownloadResult{}
	for _, r := range report.Successful {
		byPath[r.Downloadable.Path.String()] = r
	}
	require.Contains(t, byPath, "a/one")
	assert.True(t, byPath["a/one"].Metadata.OK)
	require.Contains(t, byPath, "b/two")
	assert.True(t, byPath["b/two"].RegisterURLs["https://mirror.example.com/2"].OK)
}

func TestDownloadMixedSuccessAndFailure(t *testing.T) {
	bin := writeFakeAnnex(t)
	items := []model.Downloadable{
		{Path: mustPath(t, "ok/one"), URL: "https://example.com/1"},
		{Path: mustPath(t, "ok/two"), URL: "https://example.com/2"},
		{Path: mustPath(t, "bad/one"), URL: "https://example.com/fail-this"},
		{Path: mustPath(t, "bad/two"), URL: "https://example.com/fail-that"},
		{Path: mustPath(t, "ok/three"), URL: "https://example.com/3"},
	}

	report, err := Download(context.Background(), items, Options{
		AnnexBin: bin,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	assert.Len(t, report.Successful, 3)
	require.Len(t, report.Failed, 2)
	for _, r := range report.Failed {
		assert.Contains(t, r.AddURL.Message, "404 Not Found")
	}
}

func TestDownloadSuccessWithoutKeySkipsFollowUps(t *testing.T) {
	bin := writeFakeAnnex(t)
	items := []model.Downloadable{
		{Path: mustPath(t, "nokey/one"), URL: "https://example.com/1", Metadata: map[string][]string{"x": {"y"}}},
	}

	report, err := Download(context.Background(), items, Options{
		AnnexBin: bin,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	require.Len(t, report.Successful, 1)
	assert.Empty(t, report.Failed)
	assert.Nil(t, report.Successful[0].Metadata)
	assert.Empty(t, report.Successful[0].Key)
}

func TestDownloadMetadataFailureDemotesToFailed(t *testing.T) {
	bin := writeFakeAnnex(t)
	items := []model.Downloadable{
		{Path: mustPath(t, "badmeta/one"), URL: "https://example.com/1", Metadata: map[string][]string{"x": {"y"}}},
	}

	report, err := Download(context.Background(), items, Options{
		AnnexBin: bin,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	assert.Empty(t, report.Successful)
	require.Len(t, report.Failed, 1)
	require.NotNil(t, report.Failed[0].Metadata)
	assert.False(t, report.Failed[0].Metadata.OK)
}

func TestDownloadDuplicatePathIsDroppedNotFailed(t *testing.T) {
	bin := writeFakeAnnex(t)
	items := []model.Downloadable{
		{Path: mustPath(t, "dup/one"), URL: "https://example.com/1"},
		{Path: mustPath(t, "dup/one"), URL: "https://example.com/2"},
	}

	report, err := Download(context.Background(), items, Options{
		AnnexBin: bin,
		Logger:   testLogger(),
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(report.Successful)+len(report.Failed), 1)
}

func TestDownloadOnResultHookFiresPerItem(t *testing.T) {
	bin := writeFakeAnnex(t)
	items := []model.Downloadable{
		{Path: mustPath(t, "hook/one"), URL: "https://example.com/1"},
		{Path: mustPath(t, "hook/two"), URL: "https://example.com/2"},
	}

	var seen []string
	_, err := Download(context.Background(), items, Options{
		AnnexBin: bin,
		Logger:   testLogger(),
		OnResult: func(r model.DownloadResult) {
			seen = append(seen, r.Downloadable.Path.String())
		},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"hook/one", "hook/two"}, seen)
}
