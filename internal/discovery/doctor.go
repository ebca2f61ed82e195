package discovery

import (
	"os"
	"strings"

	"warc-ops/internal/replay"
	"warc-ops/internal/runstore"
	"warc-ops/internal/wbdl"
)

type DoctorOptions struct {
	DownloaderBin  string
	ManagerBin     string
	CDXJIndexerBin string
	IndexerMode    string
	PriorityOn     bool
	ArchiveDir     string
	IndexDir       string
	OutputRoot     string
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Required bool   `json:"required"`
	Message  string `json:"message"`
}

// Doctor runs the preflight checks. Only required checks affect OK; the
// indexer that is not selected and the priority wrappers are informational.
func Doctor(opts DoctorOptions) DoctorResult {
	checks := make([]DoctorCheck, 0, 8)

	dl := wbdl.DependencyStatus(opts.DownloaderBin)
	checks = append(checks, DoctorCheck{
		Name:     "dependency:downloader",
		OK:       dl.Found,
		Required: true,
		Message:  dependencyMessage(dl.Found, dl.Path, opts.DownloaderBin),
	})

	tools := replay.DependencyStatus(opts.ManagerBin, opts.CDXJIndexerBin, "nice", "ionice")
	for i, t := range tools {
		required := false
		name := "dependency:" + t.Name
		switch i {
		case 0:
			name = "dependency:manager"
			required = opts.IndexerMode == "manager"
		case 1:
			name = "dependency:cdxj-indexer"
			required = opts.IndexerMode == "cdxj"
		}
		msg := dependencyMessage(t.Found, t.Path, t.Name)
		if i >= 2 && !t.Found && opts.PriorityOn {
			msg += " (indexing will run at normal priority)"
		}
		checks = append(checks, DoctorCheck{Name: name, OK: t.Found, Required: required, Message: msg})
	}

	for _, d := range []struct{ name, path string }{
		{"directory:archive", opts.ArchiveDir},
		{"directory:index", opts.IndexDir},
		{"directory:output", opts.OutputRoot},
	} {
		ok, msg := ensureWritableDir(d.path)
		checks = append(checks, DoctorCheck{Name: d.name, OK: ok, Required: true, Message: msg})
	}

	ok := true
	for _, c := range checks {
		if c.Required && !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "warc-ops-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
