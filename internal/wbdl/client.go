package wbdl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

// StartFailureExitCode is recorded when the downloader could not be started at
// all (shell convention for "command not executable").
const StartFailureExitCode = 127

type DownloadOptions struct {
	Binary      string
	TargetURL   string
	OutputDir   string
	Concurrency int
	LogWriter   io.Writer
	Echo        io.Writer
	Progress    func(stream OutputStream, line string)
}

type DownloadResult struct {
	Command  []string
	ExitCode int
}

type DependencyReport struct {
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

// CheckExecutable resolves bin (a name on PATH or a path) and confirms it is a
// runnable regular file.
func CheckExecutable(bin string) (string, error) {
	name := strings.TrimSpace(bin)
	if name == "" {
		return "", errors.New("downloader executable is not configured")
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("downloader %s is missing or not executable: %w", name, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat downloader %s: %w", path, err)
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return "", fmt.Errorf("downloader %s is not an executable file", path)
	}
	return path, nil
}

func DependencyStatus(bin string) DependencyReport {
	path, err := CheckExecutable(bin)
	if err != nil {
		return DependencyReport{Error: err.Error()}
	}
	return DependencyReport{Found: true, Path: path}
}

// BuildArgs returns the downloader argv after the binary name.
func BuildArgs(targetURL, outputDir string, concurrency int) []string {
	return []string{
		targetURL,
		"--directory", outputDir,
		"--concurrency", strconv.Itoa(concurrency),
	}
}

// Download runs the downloader to completion. A non-zero exit is reported in
// DownloadResult.ExitCode, not as an error; err is only set when output could
// not be collected.
func Download(ctx context.Context, opts DownloadOptions) (DownloadResult, error) {
	if strings.TrimSpace(opts.TargetURL) == "" {
		return DownloadResult{}, fmt.Errorf("target URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return DownloadResult{}, fmt.Errorf("output directory is required")
	}
	if opts.Concurrency <= 0 {
		return DownloadResult{}, fmt.Errorf("concurrency must be positive, got %d", opts.Concurrency)
	}

	args := BuildArgs(opts.TargetURL, opts.OutputDir, opts.Concurrency)
	res := DownloadResult{Command: append([]string{opts.Binary}, args...)}
	code, err := runCommand(ctx, opts, args)
	res.ExitCode = code
	return res, err
}

func runCommand(ctx context.Context, opts DownloadOptions, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, opts.Binary, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return StartFailureExitCode, fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return StartFailureExitCode, fmt.Errorf("setup stderr pipe: %w", err)
	}

	out := &lockedWriter{}
	if opts.LogWriter != nil {
		out.targets = append(out.targets, opts.LogWriter)
	}
	if opts.Echo != nil {
		out.targets = append(out.targets, opts.Echo)
	}

	if err := cmd.Start(); err != nil {
		_, _ = fmt.Fprintf(out, "failed to start %s: %v\n", opts.Binary, err)
		return StartFailureExitCode, nil
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var readErr error
	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		if err := copyLines(out, r, func(line string) {
			if opts.Progress != nil {
				opts.Progress(stream, line)
			}
		}); err != nil {
			errMu.Lock()
			if readErr == nil {
				readErr = fmt.Errorf("read downloader %s: %w", stream, err)
			}
			errMu.Unlock()
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	waitErr := cmd.Wait()
	if waitErr == nil {
		return 0, readErr
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// killed by a signal
			code = 128
		}
		return code, readErr
	}
	return StartFailureExitCode, fmt.Errorf("wait for downloader: %w", waitErr)
}

// lockedWriter serializes writes from the stdout and stderr readers.
type lockedWriter struct {
	mu      sync.Mutex
	targets []io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.targets {
		_, _ = t.Write(p)
	}
	return len(p), nil
}

const lineBufferSize = 64 * 1024

// copyLines copies r to w verbatim, a full line per write when the line fits
// the buffer. Longer lines are written in pieces and never reach onLine.
// Lines are split on \n and \r for onLine only.
func copyLines(w io.Writer, r io.Reader, onLine func(string)) error {
	br := bufio.NewReaderSize(r, lineBufferSize)
	partial := false
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			_, _ = w.Write(chunk)
			complete := chunk[len(chunk)-1] == '\n'
			if !partial && (complete || errors.Is(err, io.EOF)) {
				emitSegments(chunk, onLine)
			}
			partial = !complete
		}
		switch {
		case err == nil, errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if partial {
				_, _ = w.Write([]byte{'\n'})
			}
			return nil
		default:
			_, _ = io.Copy(w, br)
			return err
		}
	}
}

func emitSegments(line []byte, onLine func(string)) {
	for _, seg := range bytes.Split(bytes.TrimRight(line, "\r\n"), []byte{'\r'}) {
		if len(seg) > 0 {
			onLine(string(seg))
		}
	}
}
