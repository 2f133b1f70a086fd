package annex

import (
	"encoding/json"
	"fmt"
)

// MetadataRequest is one line of stdin for `git-annex metadata --batch
// --json`, keyed on the content key rather than the file path: metadata is
// attached to the key, and keying on path would race an unlocked working
// tree file that could be replaced out from under us between addurl and
// metadata (see original_source/src/annex/metadata.rs).
type MetadataRequest struct {
	Key    string              `json:"key"`
	Fields map[string][]string `json:"fields"`
}

// EncodeAnnexLine implements Encoder.
func (r MetadataRequest) EncodeAnnexLine() ([]byte, error) {
	if r.Key == "" {
		return nil, fmt.Errorf("annex: metadata request needs a key")
	}
	return json.Marshal(r)
}

// MetadataOutput is git-annex metadata's batch response.
type MetadataOutput struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Action
	AnnexResult
	Note string `json:"note,omitempty"`
}

// Check returns nil on success or an *AnnexError otherwise.
func (o MetadataOutput) Check() error {
	return checkResult(o.Action, o.AnnexResult)
}
