package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverWARCsFiltersExtensionsAndDedupes(t *testing.T) {
	tmp := t.TempDir()
	touch(t, filepath.Join(tmp, "crawl1", "archive", "a.warc.gz"), "x")
	touch(t, filepath.Join(tmp, "crawl1", "archive", "b.warc"), "x")
	touch(t, filepath.Join(tmp, "crawl1", "archive", "foo.txt"), "x")
	touch(t, filepath.Join(tmp, "crawl2", "archive", "c.warc.gz"), "x")
	if err := os.MkdirAll(filepath.Join(tmp, "crawl2", "archive", "dir.warc"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := DiscoverWARCs([]string{
		filepath.Join(tmp, "crawl1", "archive", "*"),
		filepath.Join(tmp, "*", "archive", "*.warc.gz"),
	})
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(got))
	for _, w := range got {
		names = append(names, w.Name)
	}
	want := []string{"a.warc.gz", "b.warc", "c.warc.gz"}
	if len(names) != len(want) {
		t.Fatalf("got %v want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v want %v", names, want)
		}
	}
}

func TestDiscoverWARCsRejectsBadPattern(t *testing.T) {
	if _, err := DiscoverWARCs([]string{"[unclosed"}); err == nil {
		t.Fatalf("expected bad pattern error")
	}
}

func TestCollectionStateReportsLinksAndIndexes(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src", "a.warc.gz")
	touch(t, src, "x")
	touch(t, filepath.Join(tmp, "src", "b.warc.gz"), "x")
	archiveDir := filepath.Join(tmp, "archive")
	indexDir := filepath.Join(tmp, "indexes")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(src, filepath.Join(archiveDir, "a.warc.gz")); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(indexDir, "a.warc.gz.cdxj"), "line\n")
	touch(t, filepath.Join(indexDir, "b.warc.gz.cdxj"), "")

	entries, err := CollectionState([]string{filepath.Join(tmp, "src", "*")}, archiveDir, indexDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Linked || !entries[0].Indexed {
		t.Fatalf("expected a.warc.gz linked and indexed: %+v", entries[0])
	}
	if entries[1].Linked || entries[1].Indexed {
		t.Fatalf("expected b.warc.gz unlinked and unindexed (empty index): %+v", entries[1])
	}
}

func TestDoctorFlagsMissingRequiredTools(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("PATH", filepath.Join(tmp, "empty-bin"))
	res := Doctor(DoctorOptions{
		DownloaderBin:  "wayback_machine_downloader",
		ManagerBin:     "wb-manager",
		CDXJIndexerBin: "cdxj-indexer",
		IndexerMode:    "cdxj",
		ArchiveDir:     filepath.Join(tmp, "archive"),
		IndexDir:       filepath.Join(tmp, "indexes"),
		OutputRoot:     filepath.Join(tmp, "out"),
	})
	if res.OK {
		t.Fatalf("expected doctor to fail without tools")
	}
	for _, c := range res.Checks {
		if c.Name == "dependency:manager" && c.Required {
			t.Fatalf("manager must be optional in cdxj mode")
		}
		if c.Name == "directory:archive" && !c.OK {
			t.Fatalf("expected archive dir to be created: %s", c.Message)
		}
	}
}
