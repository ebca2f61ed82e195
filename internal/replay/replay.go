// Package replay drives the external replay tooling: the collection manager
// (wb-manager) and the standalone CDXJ indexer.
package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"warc-ops/internal/model"
	"warc-ops/internal/runstore"
)

const IndexSuffix = ".cdxj"

// Priority describes the CPU/IO deprioritization applied to indexer runs so a
// replay service on the same host keeps its share.
type Priority struct {
	Enabled     bool
	Nice        int
	IONiceClass int
}

// Target identifies one WARC to index and the collection it belongs to.
type Target struct {
	Collection string
	WARCPath   string
	LinkPath   string
	IndexPath  string
}

type Indexer interface {
	Mode() string
	Index(ctx context.Context, t Target) error
}

type ManagerIndexer struct {
	Binary   string
	WorkDir  string
	Priority Priority
}

type CDXJIndexer struct {
	Binary   string
	Priority Priority
}

type IndexerOptions struct {
	Mode            string
	ManagerBin      string
	CDXJIndexerBin  string
	CollectionsRoot string
	Priority        Priority
}

func NewIndexer(opts IndexerOptions) (Indexer, error) {
	switch opts.Mode {
	case model.IndexerManager:
		return &ManagerIndexer{
			Binary:   opts.ManagerBin,
			WorkDir:  ManagerWorkDir(opts.CollectionsRoot),
			Priority: opts.Priority,
		}, nil
	case model.IndexerCDXJ:
		return &CDXJIndexer{Binary: opts.CDXJIndexerBin, Priority: opts.Priority}, nil
	default:
		return nil, fmt.Errorf("unsupported indexer mode %q", opts.Mode)
	}
}

// ManagerWorkDir is the directory wb-manager must run from: it resolves
// collections as ./collections/<name>.
func ManagerWorkDir(collectionsRoot string) string {
	if strings.TrimSpace(collectionsRoot) == "" {
		return ""
	}
	return filepath.Dir(filepath.Clean(collectionsRoot))
}

// IndexPathFor is index_dir/<basename>.cdxj.
func IndexPathFor(indexDir, warcName string) string {
	return filepath.Join(indexDir, warcName+IndexSuffix)
}

func (m *ManagerIndexer) Mode() string { return model.IndexerManager }

// Index asks the manager to index the linked copy; the manager owns the index
// artifact and the replay service picks it up without a restart.
func (m *ManagerIndexer) Index(ctx context.Context, t Target) error {
	argv := m.Priority.Wrap([]string{m.Binary, "index", t.Collection, t.LinkPath})
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = m.WorkDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s index %s %s failed: %w: %s", m.Binary, t.Collection, t.LinkPath, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *CDXJIndexer) Mode() string { return model.IndexerCDXJ }

// Index streams the indexer's stdout into a temp file next to the final index
// path and renames it into place only after a clean exit.
func (c *CDXJIndexer) Index(ctx context.Context, t Target) error {
	pending, err := runstore.CreatePending(t.IndexPath)
	if err != nil {
		return err
	}

	argv := c.Priority.Wrap([]string{c.Binary, t.WARCPath})
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = pending.File
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		pending.Abort()
		return fmt.Errorf("%s %s failed: %w: %s", c.Binary, t.WARCPath, err, strings.TrimSpace(stderr.String()))
	}
	return pending.Commit()
}

// Wrap prefixes argv with nice/ionice when enabled and available on PATH.
func (p Priority) Wrap(argv []string) []string {
	if !p.Enabled {
		return argv
	}
	prefix := make([]string, 0, 6)
	if path, err := exec.LookPath("nice"); err == nil {
		prefix = append(prefix, path, "-n", strconv.Itoa(p.Nice))
	}
	if path, err := exec.LookPath("ionice"); err == nil {
		prefix = append(prefix, path, "-c", strconv.Itoa(p.IONiceClass))
	}
	if len(prefix) == 0 {
		return argv
	}
	return append(prefix, argv...)
}

// InitResult reports what EnsureCollection did.
type InitResult struct {
	CollectionDir string `json:"collection_dir"`
	Created       bool   `json:"created"`
	ArchiveDir    string `json:"archive_dir"`
	IndexDir      string `json:"index_dir"`
}

// EnsureCollection runs `wb-manager init` for a collection that does not exist
// yet and makes sure the archive and index directories are present.
func EnsureCollection(ctx context.Context, managerBin, collectionsRoot, collection, archiveDir, indexDir string) (InitResult, error) {
	res := InitResult{
		CollectionDir: filepath.Join(collectionsRoot, collection),
		ArchiveDir:    archiveDir,
		IndexDir:      indexDir,
	}
	if _, err := os.Stat(res.CollectionDir); errors.Is(err, os.ErrNotExist) {
		if err := runstore.Mkdir(collectionsRoot); err != nil {
			return InitResult{}, err
		}
		cmd := exec.CommandContext(ctx, managerBin, "init", collection)
		cmd.Dir = ManagerWorkDir(collectionsRoot)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return InitResult{}, fmt.Errorf("%s init %s failed: %w: %s", managerBin, collection, err, strings.TrimSpace(stderr.String()))
		}
		res.Created = true
	} else if err != nil {
		return InitResult{}, fmt.Errorf("stat collection %s: %w", res.CollectionDir, err)
	}
	if err := runstore.Mkdir(archiveDir); err != nil {
		return InitResult{}, err
	}
	if err := runstore.Mkdir(indexDir); err != nil {
		return InitResult{}, err
	}
	return res, nil
}

type DependencyReport struct {
	Name  string `json:"name"`
	Found bool   `json:"found"`
	Path  string `json:"path,omitempty"`
}

func DependencyStatus(bins ...string) []DependencyReport {
	out := make([]DependencyReport, 0, len(bins))
	for _, bin := range bins {
		rep := DependencyReport{Name: bin}
		if path, err := exec.LookPath(bin); err == nil {
			rep.Found = true
			rep.Path = path
		}
		out = append(out, rep)
	}
	return out
}
