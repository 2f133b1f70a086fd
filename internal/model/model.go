// Package model holds the data types that flow through the pipeline:
// what to download, and what happened when it was.
package model

import "github.com/gamdam-go/gamdam/internal/relpath"

// Downloadable is one line of the input file: a URL to fetch into path,
// with optional git-annex metadata to attach and optional mirror URLs to
// register against the same key once it exists.
//
// Ported from Downloadable in _examples/original_source/src/lib.rs.
type Downloadable struct {
	Path      relpath.Path        `json:"path"`
	URL       string              `json:"url"`
	Metadata  map[string][]string `json:"metadata,omitempty"`
	ExtraURLs []string            `json:"extra_urls,omitempty"`
}

// Outcome is the terminal disposition of one sub-step (addurl, metadata,
// registerurl) of a Downloadable's processing.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func Ok() Outcome               { return Outcome{OK: true} }
func Failed(msg string) Outcome { return Outcome{OK: false, Message: msg} }

// DownloadResult is the final record produced for one Downloadable once its
// addurl step has completed (successfully or not) and any metadata/
// registerurl follow-ups that applied to it have also been attempted.
type DownloadResult struct {
	Downloadable Downloadable        `json:"downloadable"`
	Key          string              `json:"key,omitempty"`
	AddURL       Outcome             `json:"addurl"`
	Metadata     *Outcome            `json:"metadata,omitempty"`
	RegisterURLs map[string]Outcome `json:"register_urls,omitempty"`
}

// Successful reports whether the download and every attempted follow-up
// step succeeded. A Downloadable with no metadata/extra_urls is successful
// on addurl success alone.
func (r DownloadResult) Successful() bool {
	if !r.AddURL.OK {
		return false
	}
	if r.Metadata != nil && !r.Metadata.OK {
		return false
	}
	for _, o := range r.RegisterURLs {
		if !o.OK {
			return false
		}
	}
	return true
}

// Report partitions a run's DownloadResults into the successes and
// failures spec.md's --failures output and final log summary need, in the
// order results were produced.
type Report struct {
	Successful []DownloadResult
	Failed     []DownloadResult
}

// Add files r into the report according to its Successful() verdict.
func (rep *Report) Add(r DownloadResult) {
	if r.Successful() {
		rep.Successful = append(rep.Successful, r)
	} else {
		rep.Failed = append(rep.Failed, r)
	}
}
