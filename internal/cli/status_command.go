package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"warc-ops/internal/archive"
	"warc-ops/internal/discovery"
	"warc-ops/internal/model"
)

type statusResult struct {
	Collection string                  `json:"collection"`
	ArchiveDir string                  `json:"archive_dir"`
	IndexDir   string                  `json:"index_dir"`
	Total      int                     `json:"total"`
	Linked     int                     `json:"linked"`
	Indexed    int                     `json:"indexed"`
	Entries    []model.CollectionEntry `json:"entries"`
}

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusMissStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	statusMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show link and index state of every discovered WARC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			res, err := loadStatus(a)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(a.stdout, res)
			}
			renderStatus(a.stdout, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	cmd.Flags().StringSlice("glob", nil, "WARC glob pattern (repeatable, or comma-separated)")
	cmd.Flags().String("collection", "", "replay collection name")
	bindFlag(cmd.Flags(), "glob", "sync.warc_globs")
	bindFlag(cmd.Flags(), "collection", "sync.collection")
	return cmd
}

func loadStatus(a *app) (statusResult, error) {
	cfg := a.cfg
	entries, err := discovery.CollectionState(cfg.Sync.WARCGlobs, cfg.Sync.ArchiveDir, cfg.Sync.IndexDir)
	if err != nil {
		return statusResult{}, err
	}
	res := statusResult{
		Collection: cfg.Sync.Collection,
		ArchiveDir: cfg.Sync.ArchiveDir,
		IndexDir:   cfg.Sync.IndexDir,
		Total:      len(entries),
		Entries:    entries,
	}
	for _, e := range entries {
		if e.Linked {
			res.Linked++
		}
		if e.Indexed {
			res.Indexed++
		}
	}
	return res, nil
}

func renderStatus(w io.Writer, res statusResult) {
	fmt.Fprintln(w, statusHeaderStyle.Render(fmt.Sprintf("collection %s", res.Collection)))
	fmt.Fprintln(w, statusMutedStyle.Render(fmt.Sprintf("archive %s | indexes %s", res.ArchiveDir, res.IndexDir)))
	if len(res.Entries) == 0 {
		fmt.Fprintln(w, "(no WARC files matched)")
		return
	}

	nameWidth := len("WARC")
	for _, e := range res.Entries {
		nameWidth = maxInt(nameWidth, lipgloss.Width(e.Name))
	}
	nameWidth = clampInt(nameWidth, 8, 60)

	fmt.Fprintln(w, statusHeaderStyle.Render(fmt.Sprintf("%-*s  %-6s  %-7s  %s", nameWidth, "WARC", "LINKED", "INDEXED", "INDEX SIZE")))
	for _, e := range res.Entries {
		fmt.Fprintf(w, "%-*s  %s  %s  %s\n",
			nameWidth, truncateRunes(e.Name, nameWidth),
			stateCell(e.Linked, 6),
			stateCell(e.Indexed, 7),
			archive.FormatBytesIEC(e.IndexSize),
		)
	}
	fmt.Fprintf(w, "total %d | linked %d | indexed %d | pending %d\n",
		res.Total, res.Linked, res.Indexed, res.Total-res.Indexed)
}

func stateCell(ok bool, width int) string {
	text := yesNo(ok)
	pad := strings.Repeat(" ", maxInt(0, width-len(text)))
	if ok {
		return statusOKStyle.Render(text) + pad
	}
	return statusMissStyle.Render(text) + pad
}
