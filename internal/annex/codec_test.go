package annex

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, dec *Decoder, chunks [][]byte) (frames [][]byte, errs []error) {
	t.Helper()
	for _, c := range chunks {
		dec.Feed(c)
		for {
			frame, ok, err := dec.Next()
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				break
			}
			frames = append(frames, frame)
		}
	}
	if f, ok := dec.Final(); ok {
		frames = append(frames, f)
	}
	return
}

func TestDecoderIdempotence(t *testing.T) {
	lines := [][]byte{[]byte("alpha"), []byte(""), []byte("beta gamma"), []byte("delta")}
	var encoded bytes.Buffer
	for _, l := range lines {
		require.NoError(t, EncodeLine(&encoded, l))
	}

	// Split the encoded stream at arbitrary, even mid-line, boundaries.
	splits := [][]int{{}, {1}, {3, 10}, {5, 6, 7, 20}}
	for _, pts := range splits {
		full := encoded.Bytes()
		var chunks [][]byte
		prev := 0
		for _, p := range pts {
			if p > prev && p < len(full) {
				chunks = append(chunks, full[prev:p])
				prev = p
			}
		}
		chunks = append(chunks, full[prev:])

		dec := NewDecoder(0)
		frames, errs := decodeAll(t, dec, chunks)
		assert.Empty(t, errs)
		require.Len(t, frames, len(lines))
		for i, l := range lines {
			assert.Equal(t, l, frames[i])
		}
	}
}

func TestDecoderCRStrip(t *testing.T) {
	dec := NewDecoder(0)
	frames, errs := decodeAll(t, dec, [][]byte{[]byte("hello\r\nworld\n")})
	assert.Empty(t, errs)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte("hello"), frames[0])
	assert.Equal(t, []byte("world"), frames[1])
}

func TestDecoderMaxLengthRecovery(t *testing.T) {
	dec := NewDecoder(4)
	frames, errs := decodeAll(t, dec, [][]byte{[]byte("toolong\nok\n")})
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrMaxLineLengthExceeded))
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("ok"), frames[0])
}

func TestDecoderFinalFrameWithoutTrailingNewline(t *testing.T) {
	dec := NewDecoder(0)
	dec.Feed([]byte("first\nsecond"))
	frame, ok, err := dec.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("first"), frame)

	_, ok, err = dec.Next()
	require.NoError(t, err)
	assert.False(t, ok)

	final, ok := dec.Final()
	require.True(t, ok)
	assert.Equal(t, []byte("second"), final)
}

func TestDecoderFinalEmptyOrCROnly(t *testing.T) {
	dec := NewDecoder(0)
	_, ok := dec.Final()
	assert.False(t, ok)

	dec2 := NewDecoder(0)
	dec2.Feed([]byte("\r"))
	_, ok = dec2.Final()
	assert.False(t, ok)
}
