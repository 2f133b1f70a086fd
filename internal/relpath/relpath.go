// Package relpath implements the normalized, non-empty, forward-slash
// relative path type shared by Downloadable inputs and the action
// envelopes git-annex echoes back.
package relpath

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// Path is a normalized, non-empty, forward-slash-separated relative path.
// The zero value isn't a valid path itself — callers needing a required
// path check IsZero() — but it round-trips through JSON as null, so Path
// also serves as an optional path field (see UnmarshalJSON).
type Path struct {
	parts []string
}

var (
	// ErrEmpty is returned for "", ".", or a path that normalizes to nothing.
	ErrEmpty = errors.New("relpath: path contains no components")
	// ErrNotNormalized is returned for any ".." component.
	ErrNotNormalized = errors.New("relpath: path is not normalized")
	// ErrNotRelative is returned for absolute or drive-rooted paths.
	ErrNotRelative = errors.New("relpath: path is not relative")
	// ErrUndecodable is returned for non-UTF-8 input.
	ErrUndecodable = errors.New("relpath: path is not valid UTF-8")
)

// Normalize parses and normalizes s into a Path, rejecting empty, ".",
// any ".." component, any absolute or drive-rooted form, and any
// non-UTF-8 byte sequence.
func Normalize(s string) (Path, error) {
	if !utf8.ValidString(s) {
		return Path{}, ErrUndecodable
	}
	if s == "" || s == "." {
		return Path{}, ErrEmpty
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "\\") {
		return Path{}, ErrNotRelative
	}
	if len(s) >= 2 && s[1] == ':' {
		// Drive-rooted form, e.g. "C:\foo" or "C:/foo".
		return Path{}, ErrNotRelative
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '/' || r == '\\' })
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f {
		case "", ".":
			continue
		case "..":
			return Path{}, ErrNotNormalized
		default:
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return Path{}, ErrEmpty
	}
	return Path{parts: parts}, nil
}

// String renders the path in its canonical forward-slash form.
func (p Path) String() string {
	return strings.Join(p.parts, "/")
}

// IsZero reports whether p is the unconstructed zero value.
func (p Path) IsZero() bool {
	return len(p.parts) == 0
}

// MarshalJSON implements json.Marshaler. The zero Path marshals to JSON
// null, the inverse of UnmarshalJSON's null handling below — useful for
// optional path fields (git-annex's addurl progress records may not have
// a file yet) that reuse Path instead of a separate "maybe present" type.
func (p Path) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null decodes to the
// zero Path without error; any other value must still normalize cleanly,
// so an echoed-back path that's present but invalid still fails decoding.
func (p *Path) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Path{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	np, err := Normalize(s)
	if err != nil {
		return err
	}
	*p = np
	return nil
}
