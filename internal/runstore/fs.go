package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const (
	LogDirName    = "log"
	logFileSuffix = ".log"
	recordSuffix  = ".result.json"
)

func Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

func WriteBytes(path string, data []byte) error {
	pending, err := CreatePending(path)
	if err != nil {
		return err
	}
	if _, err := pending.Write(data); err != nil {
		pending.Abort()
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	return pending.Commit()
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON for %s: %w", path, err)
	}
	data = append(data, '\n')
	return WriteBytes(path, data)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse JSON %s: %w", path, err)
	}
	return nil
}

// PendingFile is a temp file in the destination directory that only becomes
// visible at its final path on Commit.
type PendingFile struct {
	*os.File
	final string
}

func CreatePending(path string) (*PendingFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create parent for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file for %s: %w", path, err)
	}
	return &PendingFile{File: tmp, final: path}, nil
}

func (p *PendingFile) FinalPath() string {
	return p.final
}

func (p *PendingFile) Commit() error {
	tmpPath := p.Name()
	if err := p.Chmod(0o644); err != nil {
		p.Abort()
		return fmt.Errorf("chmod temp file for %s: %w", p.final, err)
	}
	if err := p.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", p.final, err)
	}
	if err := os.Rename(tmpPath, p.final); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("atomic rename for %s: %w", p.final, err)
	}
	return nil
}

// Abort discards the temp file; the final path is never touched.
func (p *PendingFile) Abort() {
	_ = p.Close()
	_ = os.Remove(p.Name())
}

// NonEmptyFile reports whether path is a regular file with at least one byte.
func NonEmptyFile(path string) (bool, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return false, 0, nil
	}
	return info.Size() > 0, info.Size(), nil
}

// IsSymlink reports whether a symlink (dangling or not) exists at path.
func IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("lstat %s: %w", path, err)
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

// EnsureSymlink creates linkPath -> target unless a symlink is already there.
// It returns true only when this call created the link. Losing a creation race
// to another process is not an error.
func EnsureSymlink(target, linkPath string) (bool, error) {
	exists, err := IsSymlink(linkPath)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := os.Lstat(linkPath); err == nil {
		return false, fmt.Errorf("link path %s exists and is not a symlink", linkPath)
	}
	if err := Mkdir(filepath.Dir(linkPath)); err != nil {
		return false, err
	}
	if err := os.Symlink(target, linkPath); err != nil {
		if errors.Is(err, syscall.EEXIST) {
			if again, _ := IsSymlink(linkPath); again {
				return false, nil
			}
		}
		return false, fmt.Errorf("symlink %s -> %s: %w", linkPath, target, err)
	}
	return true, nil
}

func JobLogDir(outputDir string) string {
	return filepath.Join(outputDir, LogDirName)
}

func JobLogPath(outputDir, jobName string) string {
	return filepath.Join(JobLogDir(outputDir), jobName+logFileSuffix)
}

func RunRecordPath(outputDir, jobName string) string {
	return filepath.Join(JobLogDir(outputDir), jobName+recordSuffix)
}

// OpenAppend opens (creating if needed) a log file for appending.
func OpenAppend(path string) (*os.File, error) {
	if err := Mkdir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return f, nil
}
