package wbdl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var reFilesFound = regexp.MustCompile(`(?i)(^|\s)[0-9]+ files found matching criteria`)

// LogSummary is what the job log says about a run, independent of exit codes.
type LogSummary struct {
	Completed       bool
	FilesDownloaded int
	CountLine       string
}

// ScanLogFile scans the whole job log, including output of earlier runs that
// appended to the same file.
func ScanLogFile(path, completionMarker string) (LogSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return LogSummary{}, fmt.Errorf("open job log %s: %w", path, err)
	}
	defer f.Close()
	sum, err := ScanLog(f, completionMarker)
	if err != nil {
		return LogSummary{}, fmt.Errorf("scan job log %s: %w", path, err)
	}
	return sum, nil
}

// ScanLog looks for the completion marker (case-insensitive substring) and for
// the most recent "<n> files found matching criteria" line.
func ScanLog(r io.Reader, completionMarker string) (LogSummary, error) {
	marker := strings.ToLower(strings.TrimSpace(completionMarker))
	var sum LogSummary
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			if marker != "" && !sum.Completed && strings.Contains(strings.ToLower(line), marker) {
				sum.Completed = true
			}
			if reFilesFound.MatchString(line) {
				sum.CountLine = line
				sum.FilesDownloaded = firstNumericToken(line)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return sum, nil
			}
			return LogSummary{}, err
		}
	}
}

func firstNumericToken(line string) int {
	for _, tok := range strings.Fields(line) {
		if !isDigits(tok) {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
