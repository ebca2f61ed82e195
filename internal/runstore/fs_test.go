package runstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPendingFileAbortLeavesNothingAtFinalPath(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "crawl.warc.gz.cdxj")

	pending, err := CreatePending(final)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pending.WriteString("partial"); err != nil {
		t.Fatal(err)
	}
	pending.Abort()

	if _, err := os.Stat(final); !os.IsNotExist(err) {
		t.Fatalf("expected no file at final path, stat err=%v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp file cleanup, found %d entries", len(entries))
	}
}

func TestWriteBytesPublishesWholeFile(t *testing.T) {
	dir := t.TempDir()
	final := filepath.Join(dir, "nested", "out.json")
	if err := WriteBytes(final, []byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestEnsureSymlinkIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "src", "a.warc.gz")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("warc"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "archive", "a.warc.gz")

	created, err := EnsureSymlink(target, link)
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	created, err = EnsureSymlink(target, link)
	if err != nil || created {
		t.Fatalf("second ensure: created=%v err=%v", created, err)
	}
	got, err := os.Readlink(link)
	if err != nil {
		t.Fatal(err)
	}
	if got != target {
		t.Fatalf("link target: got %q want %q", got, target)
	}
}

func TestEnsureSymlinkRejectsRegularFile(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "a.warc")
	if err := os.WriteFile(link, []byte("not a link"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureSymlink(filepath.Join(dir, "elsewhere.warc"), link); err == nil {
		t.Fatalf("expected error when a regular file occupies the link path")
	}
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.cdxj")
	full := filepath.Join(dir, "full.cdxj")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("com,example)/ 2024 {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if ok, _, err := NonEmptyFile(filepath.Join(dir, "missing.cdxj")); err != nil || ok {
		t.Fatalf("missing: ok=%v err=%v", ok, err)
	}
	if ok, _, err := NonEmptyFile(empty); err != nil || ok {
		t.Fatalf("empty: ok=%v err=%v", ok, err)
	}
	if ok, size, err := NonEmptyFile(full); err != nil || !ok || size == 0 {
		t.Fatalf("full: ok=%v size=%d err=%v", ok, size, err)
	}
}

func TestJobLogPaths(t *testing.T) {
	if got := JobLogPath("/data/out", "wb-example-com"); got != filepath.Join("/data/out", "log", "wb-example-com.log") {
		t.Fatalf("unexpected log path %q", got)
	}
	if got := RunRecordPath("/data/out", "job"); got != filepath.Join("/data/out", "log", "job.result.json") {
		t.Fatalf("unexpected record path %q", got)
	}
}
