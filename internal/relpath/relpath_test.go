package relpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOK(t *testing.T) {
	cases := []struct{ in, want string }{
		{"foo", "foo"},
		{"foo/bar", "foo/bar"},
		{"foo/.", "foo"},
		{"./foo", "foo"},
		{"foo/./bar", "foo/bar"},
		{"foo/", "foo"},
		{"foo//bar", "foo/bar"},
	}
	for _, c := range cases {
		p, err := Normalize(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, p.String(), c.in)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := []struct {
		in      string
		wantErr error
	}{
		{"", ErrEmpty},
		{".", ErrEmpty},
		{"..", ErrNotNormalized},
		{"/", ErrNotRelative},
		{"/foo", ErrNotRelative},
		{"foo/..", ErrNotNormalized},
		{"../foo", ErrNotNormalized},
		{"foo/../bar", ErrNotNormalized},
		{"foo/bar/..", ErrNotNormalized},
	}
	for _, c := range cases {
		_, err := Normalize(c.in)
		assert.ErrorIs(t, err, c.wantErr, c.in)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	p, err := Normalize("a/b/c.txt")
	require.NoError(t, err)
	data, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"a/b/c.txt"`, string(data))

	var p2 Path
	require.NoError(t, p2.UnmarshalJSON(data))
	assert.Equal(t, p, p2)
}

func TestJSONRejectsInvalid(t *testing.T) {
	var p Path
	err := p.UnmarshalJSON([]byte(`".."`))
	assert.ErrorIs(t, err, ErrNotNormalized)
}
