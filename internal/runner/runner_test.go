package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"warc-ops/internal/model"
	"warc-ops/internal/runstore"
	"warc-ops/internal/sink"
)

func installDownloader(t *testing.T, body string) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(bin, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(bin, "wayback_machine_downloader")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", bin+":"+os.Getenv("PATH"))
	return path
}

func exitCodeOf(t *testing.T, err error) int {
	t.Helper()
	var inErr *InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected InputError, got %v", err)
	}
	return inErr.ExitStatus()
}

func TestValidateOrdering(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := Validate([]string{"example.com", "0", "/tmp/out"}, "wayback_machine_downloader")
	if code := exitCodeOf(t, err); code != ExitUsage {
		t.Fatalf("wrong arity must win: got %d", code)
	}

	_, err = Validate([]string{"example.com", "0", "/tmp/out", "job"}, "wayback_machine_downloader")
	if code := exitCodeOf(t, err); code != ExitDownloader {
		t.Fatalf("missing downloader before concurrency: got %d", code)
	}
}

func TestValidateRejectsBadConcurrencyWithoutSideEffects(t *testing.T) {
	installDownloader(t, "#!/usr/bin/env bash\nexit 0\n")
	out := filepath.Join(t.TempDir(), "out")

	for _, raw := range []string{"0", "-1", "01", "abc", "2.5", ""} {
		_, err := Validate([]string{"example.com", raw, out, "job"}, "wayback_machine_downloader")
		if code := exitCodeOf(t, err); code != ExitBadConcurrency {
			t.Fatalf("concurrency %q: expected exit 4, got %d", raw, code)
		}
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("validation must not create the output dir")
	}
}

func TestValidateRejectsNonExecutableDownloader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wbd")
	if err := os.WriteFile(path, []byte("#!/usr/bin/env bash\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Validate([]string{"example.com", "3", "/tmp/out", "job"}, path)
	if code := exitCodeOf(t, err); code != ExitDownloader {
		t.Fatalf("expected exit 3, got %d", code)
	}
}

func TestRunStatusIndependentOfExitCode(t *testing.T) {
	installDownloader(t, `#!/usr/bin/env bash
echo "Getting snapshot pages.. found 40 snapshots"
echo "12 files found matching criteria"
echo "warning: something went wrong" >&2
echo "Download finished in 3s"
exit 1
`)
	out := filepath.Join(t.TempDir(), "wb-example-com")
	req, err := Validate([]string{"example.com", "5", out, "wb-example-com"}, "wayback_machine_downloader")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := Run(context.Background(), req, Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rec.ExitCode != 1 {
		t.Fatalf("expected exit code 1 recorded, got %d", rec.ExitCode)
	}
	if got := rec.Line(); got != "wb-example-com:FINISHED,12" {
		t.Fatalf("unexpected result line %q", got)
	}

	logRaw, err := os.ReadFile(runstore.JobLogPath(out, "wb-example-com"))
	if err != nil {
		t.Fatal(err)
	}
	log := string(logRaw)
	for _, want := range []string{"START job=wb-example-com", "something went wrong", "END job=wb-example-com", "exit_code=1"} {
		if !strings.Contains(log, want) {
			t.Fatalf("log missing %q:\n%s", want, log)
		}
	}

	var stored model.RunRecord
	if err := runstore.ReadJSON(runstore.RunRecordPath(out, "wb-example-com"), &stored); err != nil {
		t.Fatal(err)
	}
	if stored.RunID != rec.RunID || stored.Status != model.StatusFinished {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
}

func TestRunFailedWithoutMarkerEvenOnZeroExit(t *testing.T) {
	installDownloader(t, `#!/usr/bin/env bash
echo "found 0 snapshots"
exit 0
`)
	out := t.TempDir()
	req, err := Validate([]string{"example.com", "1", out, "job"}, "wayback_machine_downloader")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := Run(context.Background(), req, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Line() != "job:FAILED,0" {
		t.Fatalf("unexpected result %q", rec.Line())
	}
}

func TestRunAppendsToExistingLog(t *testing.T) {
	installDownloader(t, `#!/usr/bin/env bash
echo "run $*"
`)
	out := t.TempDir()
	req, err := Validate([]string{"example.com", "2", out, "job"}, "wayback_machine_downloader")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := Run(context.Background(), req, Options{}); err != nil {
			t.Fatal(err)
		}
	}
	raw, err := os.ReadFile(runstore.JobLogPath(out, "job"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(raw), "START job=job"); n != 2 {
		t.Fatalf("expected two start markers, got %d", n)
	}
	if !strings.Contains(string(raw), "run example.com --directory "+out+" --concurrency 2") {
		t.Fatalf("expected downloader argv in log:\n%s", raw)
	}
}

type recordingSink struct {
	got []model.RunRecord
}

func (r *recordingSink) Name() string { return "recording" }
func (r *recordingSink) Publish(_ context.Context, rec model.RunRecord) error {
	r.got = append(r.got, rec)
	return nil
}
func (r *recordingSink) Close() error { return nil }

type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) Publish(context.Context, model.RunRecord) error {
	return errors.New("unreachable")
}
func (failingSink) Close() error { return nil }

func TestRunPublishesToSinksAndIgnoresSinkFailure(t *testing.T) {
	installDownloader(t, "#!/usr/bin/env bash\necho 'Download finished'\n")
	out := t.TempDir()
	req, err := Validate([]string{"example.com", "1", out, "job"}, "wayback_machine_downloader")
	if err != nil {
		t.Fatal(err)
	}
	rs := &recordingSink{}
	rec, err := Run(context.Background(), req, Options{Sinks: sink.NewFanout(nil, failingSink{}, rs)})
	if err != nil {
		t.Fatalf("sink failure must not fail the run: %v", err)
	}
	if len(rs.got) != 1 || rs.got[0].RunID != rec.RunID {
		t.Fatalf("expected record published, got %+v", rs.got)
	}
}

func TestRecompute(t *testing.T) {
	out := t.TempDir()
	logPath := runstore.JobLogPath(out, "job")
	if err := runstore.WriteBytes(logPath, []byte("7 files found matching criteria\nDOWNLOAD FINISHED\n")); err != nil {
		t.Fatal(err)
	}
	res, err := Recompute(out, "job", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Line() != "job:FINISHED,7" {
		t.Fatalf("unexpected result %q", res.Line())
	}
	if _, err := Recompute(out, "missing", ""); err == nil {
		t.Fatalf("expected error for missing log")
	}
}

func TestWaybackJobName(t *testing.T) {
	if got := WaybackJobName("www.example.co.uk"); got != "wb-www-example-co-uk" {
		t.Fatalf("got %q", got)
	}
}
