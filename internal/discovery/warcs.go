package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"warc-ops/internal/model"
	"warc-ops/internal/replay"
	"warc-ops/internal/runstore"
)

// DiscoverWARCs expands the glob patterns in order and keeps regular files
// named *.warc or *.warc.gz. A file matched by several patterns is returned
// once, at its first position.
func DiscoverWARCs(patterns []string) ([]model.WARCFile, error) {
	out := make([]model.WARCFile, 0)
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		p := strings.TrimSpace(pattern)
		if p == "" {
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("expand glob %q: %w", p, err)
		}
		for _, m := range matches {
			name := filepath.Base(m)
			if !model.IsWARCName(name) {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			abs, err := filepath.Abs(m)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", m, err)
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			out = append(out, model.WARCFile{Path: abs, Name: name})
		}
	}
	return out, nil
}

// CollectionState reports link/index state for every discovered WARC without
// changing anything on disk.
func CollectionState(patterns []string, archiveDir, indexDir string) ([]model.CollectionEntry, error) {
	warcs, err := DiscoverWARCs(patterns)
	if err != nil {
		return nil, err
	}
	entries := make([]model.CollectionEntry, 0, len(warcs))
	for _, w := range warcs {
		linkPath := filepath.Join(archiveDir, w.Name)
		indexPath := replay.IndexPathFor(indexDir, w.Name)
		linked, err := runstore.IsSymlink(linkPath)
		if err != nil {
			return nil, err
		}
		indexed, size, err := runstore.NonEmptyFile(indexPath)
		if err != nil {
			return nil, err
		}
		entries = append(entries, model.CollectionEntry{
			WARC:      w.Path,
			Name:      w.Name,
			Linked:    linked,
			LinkPath:  linkPath,
			Indexed:   indexed,
			IndexPath: indexPath,
			IndexSize: size,
		})
	}
	return entries, nil
}
