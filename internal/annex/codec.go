package annex

import (
	"bufio"
	"errors"
	"io"
)

// ErrMaxLineLengthExceeded is reported exactly once per over-long line; the
// decoder then discards bytes up to and including the next newline before
// resuming normal decoding.
var ErrMaxLineLengthExceeded = errors.New("annex: max line length exceeded")

// Decoder turns a byte-transparent, newline-delimited stream into frames. It
// does not interpret payload bytes (it does not assume UTF-8), strips one
// trailing '\r' per line, and remembers its scan position across calls so
// repeated decoding is O(total bytes).
//
// Ported from the BinaryLinesCodec described in gamdam's Rust source
// (_examples/original_source/src/blc.rs), which itself is a fork of
// tokio-util's LinesCodec adjusted for byte-transparent framed JSON.
type Decoder struct {
	maxLength  int // 0 means unbounded
	buf        []byte
	nextIndex  int
	discarding bool
}

// NewDecoder returns a Decoder. maxLength <= 0 means unbounded.
func NewDecoder(maxLength int) *Decoder {
	return &Decoder{maxLength: maxLength}
}

// Feed appends newly read bytes to the decoder's internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next attempts to decode one frame from the buffer accumulated so far. It
// returns ok=false when more input is required (call Feed then Next again).
// A non-nil error is ErrMaxLineLengthExceeded; the caller should keep calling
// Next (after further Feed calls, if needed) since the decoder will resume
// once it has discarded through the next newline.
func (d *Decoder) Next() (frame []byte, ok bool, err error) {
	for {
		readTo := len(d.buf)
		if d.maxLength > 0 && d.maxLength+1 < readTo {
			readTo = d.maxLength + 1
		}
		if d.nextIndex > readTo {
			d.nextIndex = readTo
		}
		offset := indexByte(d.buf[d.nextIndex:readTo], '\n')

		switch {
		case d.discarding && offset >= 0:
			d.buf = d.buf[offset+d.nextIndex+1:]
			d.discarding = false
			d.nextIndex = 0
			continue
		case d.discarding && offset < 0:
			d.buf = d.buf[readTo:]
			d.nextIndex = 0
			if len(d.buf) == 0 {
				return nil, false, nil
			}
			continue
		case !d.discarding && offset >= 0:
			newlineIndex := offset + d.nextIndex
			line := d.buf[:newlineIndex]
			d.buf = d.buf[newlineIndex+1:]
			d.nextIndex = 0
			return withoutCR(line), true, nil
		case !d.discarding && d.maxLength > 0 && len(d.buf) > d.maxLength:
			d.discarding = true
			return nil, false, ErrMaxLineLengthExceeded
		default:
			d.nextIndex = readTo
			return nil, false, nil
		}
	}
}

// Final returns any remaining buffered bytes as a last frame once the
// underlying stream has reached EOF, mirroring decode_eof: a lone "\r" or an
// empty buffer yields no frame.
func (d *Decoder) Final() (frame []byte, ok bool) {
	if f, had, err := d.Next(); err == nil && had {
		return f, true
	}
	if len(d.buf) == 0 || string(d.buf) == "\r" {
		return nil, false
	}
	line := withoutCR(d.buf)
	d.buf = nil
	d.nextIndex = 0
	return line, true
}

func withoutCR(s []byte) []byte {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

func indexByte(s []byte, b byte) int {
	for i, c := range s {
		if c == b {
			return i
		}
	}
	return -1
}

// ReadFrames drives a Decoder from r, invoking fn for every decoded frame
// until EOF. A returned ErrMaxLineLengthExceeded from fn's perspective is
// delivered to fn as an error frame so the caller can log it and keep going;
// any other read error aborts immediately.
func ReadFrames(r io.Reader, dec *Decoder, fn func(frame []byte, ferr error) error) error {
	br := bufio.NewReaderSize(r, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		frame, ok, err := dec.Next()
		if err != nil {
			if cerr := fn(nil, err); cerr != nil {
				return cerr
			}
			continue
		}
		if ok {
			if cerr := fn(frame, nil); cerr != nil {
				return cerr
			}
			continue
		}
		n, rerr := br.Read(chunk)
		if n > 0 {
			dec.Feed(chunk[:n])
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				if frame, ok := dec.Final(); ok {
					return fn(frame, nil)
				}
				return nil
			}
			return rerr
		}
	}
}

// EncodeLine writes payload followed by a single '\n' to w without
// interpreting payload bytes.
func EncodeLine(w io.Writer, payload []byte) error {
	if _, err := w.Write(payload); err != nil {
		return err
	}
	_, err := w.Write([]byte{'\n'})
	return err
}
