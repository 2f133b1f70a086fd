package annex

import "fmt"

// RegisterURLRequest is one line of stdin for `git-annex registerurl
// --batch --json`: "<key> <url>", ported from
// RegisterURLInput::to_annex_input in original_source/src/annex/registerurl.rs.
type RegisterURLRequest struct {
	Key string
	URL string
}

// EncodeAnnexLine implements Encoder.
func (r RegisterURLRequest) EncodeAnnexLine() ([]byte, error) {
	if r.Key == "" || r.URL == "" {
		return nil, fmt.Errorf("annex: registerurl request needs both key and url, got %q %q", r.Key, r.URL)
	}
	return []byte(r.Key + " " + r.URL), nil
}

// RegisterURLOutput is git-annex registerurl's batch response.
type RegisterURLOutput struct {
	Action
	AnnexResult
}

// Check returns nil on success or an *AnnexError otherwise.
func (o RegisterURLOutput) Check() error {
	return checkResult(o.Action, o.AnnexResult)
}
