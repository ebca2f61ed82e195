package wbdl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScanLogCountExtraction(t *testing.T) {
	log := strings.Join([]string{
		"Downloading example.com to websites/example.com/ from Wayback Machine archives.",
		"Getting snapshot pages.. found 31 snapshots to consider.",
		"12 files found matching criteria.",
		"http://example.com/ -> websites/example.com/index.html (1/12)",
	}, "\n")

	sum, err := ScanLog(strings.NewReader(log), "Download finished")
	if err != nil {
		t.Fatal(err)
	}
	if sum.FilesDownloaded != 12 {
		t.Fatalf("expected 12 files, got %d", sum.FilesDownloaded)
	}
	if sum.Completed {
		t.Fatalf("did not expect completion without marker")
	}
}

func TestScanLogWithoutCountLineYieldsZero(t *testing.T) {
	sum, err := ScanLog(strings.NewReader("No files to download.\n"), "Download finished")
	if err != nil {
		t.Fatal(err)
	}
	if sum.FilesDownloaded != 0 || sum.CountLine != "" {
		t.Fatalf("expected zero count, got %+v", sum)
	}
}

func TestScanLogMarkerIsCaseInsensitive(t *testing.T) {
	sum, err := ScanLog(strings.NewReader("...\nDOWNLOAD FINISHED in 3.2s, saved in websites/x\n"), "Download finished")
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Completed {
		t.Fatalf("expected completion marker to match case-insensitively")
	}
}

func TestScanLogUsesMostRecentCountLine(t *testing.T) {
	log := "3 files found matching criteria.\nrun again\n40 files found matching criteria.\n"
	sum, err := ScanLog(strings.NewReader(log), "Download finished")
	if err != nil {
		t.Fatal(err)
	}
	if sum.FilesDownloaded != 40 {
		t.Fatalf("expected latest count 40, got %d", sum.FilesDownloaded)
	}
}

func TestScanLogIgnoresNumbersGluedToWords(t *testing.T) {
	sum, err := ScanLog(strings.NewReader("page7 files found matching criteria\n"), "Download finished")
	if err != nil {
		t.Fatal(err)
	}
	if sum.FilesDownloaded != 0 {
		t.Fatalf("expected no count, got %d", sum.FilesDownloaded)
	}
}

func TestFirstNumericToken(t *testing.T) {
	cases := []struct {
		line string
		want int
	}{
		{"12 files found matching criteria", 12},
		{"[wb] 7 files found matching criteria.", 7},
		{"after 3 pages 9 files found matching criteria", 3},
		{"no numbers here", 0},
	}
	for _, tc := range cases {
		if got := firstNumericToken(tc.line); got != tc.want {
			t.Fatalf("%q: got %d want %d", tc.line, got, tc.want)
		}
	}
}

func TestScanLogFileMissing(t *testing.T) {
	if _, err := ScanLogFile(filepath.Join(t.TempDir(), "none.log"), "x"); err == nil {
		t.Fatalf("expected error for missing log")
	}
}

func TestScanLogFileReadsWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.log")
	body := "earlier run\nDownload finished\nlater run failed\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	sum, err := ScanLogFile(path, "download finished")
	if err != nil {
		t.Fatal(err)
	}
	if !sum.Completed {
		t.Fatalf("expected marker from an earlier run to count")
	}
}
