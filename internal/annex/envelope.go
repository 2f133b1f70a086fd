package annex

import (
	"strings"

	"github.com/gamdam-go/gamdam/internal/relpath"
)

// Action echoes back the command git-annex ran, the file it operated on,
// and the raw input line it was given. Every response schema embeds these
// fields at the top level (git-annex's JSON has no nested "action" object
// once --json-error-messages is combined with batch mode's flattened
// result, and neither does ours).
//
// File is optional: a progress record may report byte-progress before
// git-annex has settled on (or has nothing meaningful to report for) a
// destination file, in which case it comes back as JSON null. File is
// typed as relpath.Path rather than string so that when it IS present, an
// echoed-back value that fails to normalize (absolute, "..", etc.) fails
// decoding instead of silently passing through.
type Action struct {
	Command string       `json:"command"`
	File    relpath.Path `json:"file,omitempty"`
	Input   []string     `json:"input,omitempty"`
}

// AnnexResult is git-annex's uniform success/failure envelope, present on
// every non-progress batch response.
type AnnexResult struct {
	Success       bool     `json:"success"`
	ErrorMessages []string `json:"error-messages,omitempty"`
}

// AnnexError reports a non-success AnnexResult, formatting zero, one, or
// many error-messages the way git-annex's own CLI renders them.
type AnnexError struct {
	Command       string
	File          string
	ErrorMessages []string
}

func (e *AnnexError) Error() string {
	var b strings.Builder
	b.WriteString("git-annex ")
	b.WriteString(e.Command)
	if e.File != "" {
		b.WriteString(" ")
		b.WriteString(e.File)
	}
	switch len(e.ErrorMessages) {
	case 0:
		b.WriteString(" failed")
	case 1:
		b.WriteString(" failed: ")
		b.WriteString(e.ErrorMessages[0])
	default:
		b.WriteString(" failed:")
		for _, m := range e.ErrorMessages {
			b.WriteString("\n  ")
			b.WriteString(m)
		}
	}
	return b.String()
}

// checkResult returns nil on success or an *AnnexError built from the
// Action/AnnexResult pair otherwise.
func checkResult(a Action, r AnnexResult) error {
	if r.Success {
		return nil
	}
	return &AnnexError{Command: a.Command, File: a.File.String(), ErrorMessages: r.ErrorMessages}
}
