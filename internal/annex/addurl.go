package annex

import (
	"encoding/json"
	"fmt"
)

// AddURLRequest is one line of stdin for `git-annex addurl --batch --json`:
// "<url> <path>", as documented by git-annex and ported from
// AddURLInput::to_annex_input in original_source/src/annex/addurl.rs.
type AddURLRequest struct {
	URL  string
	Path string
}

// EncodeAnnexLine implements Encoder.
func (r AddURLRequest) EncodeAnnexLine() ([]byte, error) {
	if r.URL == "" || r.Path == "" {
		return nil, fmt.Errorf("annex: addurl request needs both url and path, got %q %q", r.URL, r.Path)
	}
	return []byte(r.URL + " " + r.Path), nil
}

// AddURLOutput is git-annex addurl's untagged response: either a Progress
// line (repeated while a download is in flight) or a Completion line (the
// final result). Ported from the AddURLOutput enum in
// original_source/src/annex/addurl.rs; Go has no native untagged-enum
// decoding, so UnmarshalJSON probes for the "byte-progress" key before
// committing to a variant, per spec.md's documented disambiguation rule.
type AddURLOutput struct {
	IsProgress bool

	// Progress fields.
	ByteProgress    int64  `json:"-"`
	TotalSize       *int64 `json:"-"`
	PercentProgress string `json:"-"`

	// Shared/completion fields.
	Action
	AnnexResult
	Key  string `json:"-"`
	Note string `json:"-"`
}

type addURLProgressWire struct {
	ByteProgress    int64  `json:"byte-progress"`
	TotalSize       *int64 `json:"total-size"`
	PercentProgress string `json:"percent-progress"`
	Action
}

type addURLCompletionWire struct {
	Key string `json:"key,omitempty"`
	Action
	AnnexResult
	Note string `json:"note,omitempty"`
}

type probeKey struct {
	ByteProgress json.RawMessage `json:"byte-progress"`
}

// UnmarshalJSON implements json.Unmarshaler, resolving the untagged union by
// checking for the presence of a top-level "byte-progress" key first.
func (o *AddURLOutput) UnmarshalJSON(data []byte) error {
	var probe probeKey
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.ByteProgress != nil {
		var w addURLProgressWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		*o = AddURLOutput{
			IsProgress:      true,
			ByteProgress:    w.ByteProgress,
			TotalSize:       w.TotalSize,
			PercentProgress: w.PercentProgress,
			Action:          w.Action,
		}
		return nil
	}

	var w addURLCompletionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = AddURLOutput{
		IsProgress:  false,
		Action:      w.Action,
		AnnexResult: w.AnnexResult,
		Key:         w.Key,
		Note:        w.Note,
	}
	return nil
}

// MarshalJSON round-trips an AddURLOutput back into whichever wire shape it
// was decoded from. Primarily useful for the journal and for tests.
func (o AddURLOutput) MarshalJSON() ([]byte, error) {
	if o.IsProgress {
		return json.Marshal(addURLProgressWire{
			ByteProgress:    o.ByteProgress,
			TotalSize:       o.TotalSize,
			PercentProgress: o.PercentProgress,
			Action:          o.Action,
		})
	}
	return json.Marshal(addURLCompletionWire{
		Key:         o.Key,
		Action:      o.Action,
		AnnexResult: o.AnnexResult,
		Note:        o.Note,
	})
}

// File reports the destination path this output is about, rendered as a
// plain string; empty when the action's file is absent (a progress record
// that hasn't settled on, or has nothing to report for, a destination yet).
func (o AddURLOutput) File() string {
	return o.Action.File.String()
}

// Check returns nil for a successful completion, an *AnnexError for a
// failed one, and an error for a stray call on a progress record (the
// caller is expected to keep looping on progress lines, not Check them).
func (o AddURLOutput) Check() error {
	if o.IsProgress {
		return fmt.Errorf("annex: addurl: Check called on a progress record for %s", o.File())
	}
	return checkResult(o.Action, o.AnnexResult)
}
