package model

import (
	"fmt"
	"strings"
)

// RunResult is the single record a download run reports to its caller.
type RunResult struct {
	JobName         string `json:"job_name"`
	Status          string `json:"status"`
	FilesDownloaded int    `json:"files_downloaded"`
}

// Line renders the result as `job_name:STATUS,files_downloaded`.
func (r RunResult) Line() string {
	return fmt.Sprintf("%s:%s,%d", r.JobName, r.Status, r.FilesDownloaded)
}

// RunRecord is the persisted form of a run, written next to the job log.
type RunRecord struct {
	RunResult
	RunID       string `json:"run_id"`
	URL         string `json:"url"`
	Concurrency int    `json:"concurrency"`
	OutputDir   string `json:"output_dir"`
	LogPath     string `json:"log_path"`
	ExitCode    int    `json:"exit_code"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at"`
}

// WARCFile is one discovered archive artifact.
type WARCFile struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// IsWARCName reports whether name carries one of the accepted WARC extensions.
func IsWARCName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".warc") || strings.HasSuffix(lower, ".warc.gz")
}

// SyncEntry describes what a sync pass did for one WARC.
type SyncEntry struct {
	WARC       string `json:"warc"`
	LinkPath   string `json:"link_path"`
	IndexPath  string `json:"index_path"`
	LinkedNow  bool   `json:"linked_now"`
	IndexedNow bool   `json:"indexed_now"`
	SkipReason string `json:"skip_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

type SyncReport struct {
	Collection string      `json:"collection"`
	Mode       string      `json:"mode"`
	Matched    int         `json:"matched"`
	Linked     int         `json:"linked"`
	Indexed    int         `json:"indexed"`
	Skipped    int         `json:"skipped"`
	Failures   int         `json:"failures"`
	Entries    []SyncEntry `json:"entries"`
}

// CollectionEntry is a read-only view of one WARC's link/index state.
type CollectionEntry struct {
	WARC      string `json:"warc"`
	Name      string `json:"name"`
	Linked    bool   `json:"linked"`
	LinkPath  string `json:"link_path"`
	Indexed   bool   `json:"indexed"`
	IndexPath string `json:"index_path"`
	IndexSize int64  `json:"index_size"`
}
