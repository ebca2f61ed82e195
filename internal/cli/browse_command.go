package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"warc-ops/internal/archive"
	"warc-ops/internal/discovery"
	"warc-ops/internal/model"
)

type browseMode int

const (
	browseModeList browseMode = iota
	browseModeFilter
)

type browseModel struct {
	globs      []string
	collection string
	archiveDir string
	indexDir   string

	entries []model.CollectionEntry
	cursor  int
	width   int
	height  int
	mode    browseMode
	filter  textinput.Model

	statusMessage string
	syncTarget    string
	syncAll       bool
	fatalErr      error
}

type browseLoadedMsg struct {
	entries []model.CollectionEntry
	err     error
}

var (
	browseTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	browseMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	browseErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	browseOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	browsePanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	browseSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactive view of the collection's link and index state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if !stdinIsTTY() {
				return errors.New("browse requires an interactive terminal (TTY)")
			}
			m := newBrowseModel(a.cfg.Sync.WARCGlobs, a.cfg.Sync.Collection, a.cfg.Sync.ArchiveDir, a.cfg.Sync.IndexDir)
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			finalModel, err := p.Run()
			if err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "tty") {
					return errors.New("browse requires an interactive terminal (TTY)")
				}
				return err
			}
			fm, ok := finalModel.(browseModel)
			if !ok {
				return nil
			}
			switch {
			case fm.syncAll:
				fmt.Fprintln(a.stderr, "browse: syncing all discovered WARC files...")
				return runSync(cmd, a, nil, false)
			case fm.syncTarget != "":
				fmt.Fprintf(a.stderr, "browse: syncing %s...\n", fm.syncTarget)
				return runSync(cmd, a, []string{escapeGlob(fm.syncTarget)}, false)
			}
			return fm.fatalErr
		},
	}
}

func newBrowseModel(globs []string, collection, archiveDir, indexDir string) browseModel {
	in := textinput.New()
	in.Placeholder = "filter by name"
	in.Prompt = "/ "
	in.CharLimit = 256
	return browseModel{
		globs:      globs,
		collection: collection,
		archiveDir: archiveDir,
		indexDir:   indexDir,
		mode:       browseModeList,
		filter:     in,
	}
}

func (m browseModel) Init() tea.Cmd {
	return loadCollectionCmd(m.globs, m.archiveDir, m.indexDir)
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filter.Width = clampInt(m.width-8, 10, 60)
		return m, nil
	case browseLoadedMsg:
		if msg.err != nil {
			m.fatalErr = msg.err
			return m, tea.Quit
		}
		m.entries = msg.entries
		m.cursor = clampInt(m.cursor, 0, maxInt(len(m.visible())-1, 0))
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if m.mode == browseModeFilter {
		return m.updateFilter(keyMsg)
	}
	return m.updateList(keyMsg)
}

func (m browseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visible()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
		return m, nil
	case "r":
		m.statusMessage = "reloading..."
		return m, loadCollectionCmd(m.globs, m.archiveDir, m.indexDir)
	case "/":
		m.mode = browseModeFilter
		return m, m.filter.Focus()
	case "esc":
		m.filter.SetValue("")
		m.cursor = 0
		return m, nil
	case "s", "enter":
		if len(visible) == 0 {
			m.statusMessage = "error: nothing selected"
			return m, nil
		}
		sel := visible[m.cursor]
		if sel.Linked && sel.Indexed {
			m.statusMessage = sel.Name + " is already linked and indexed"
			return m, nil
		}
		m.syncTarget = sel.WARC
		m.statusMessage = "sync " + sel.Name + ": launching..."
		return m, tea.Quit
	case "S":
		m.syncAll = true
		m.statusMessage = "sync all: launching..."
		return m, tea.Quit
	}
	return m, nil
}

func (m browseModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.mode = browseModeList
		m.filter.Blur()
		return m, nil
	case "esc":
		m.mode = browseModeList
		m.filter.Blur()
		m.filter.SetValue("")
		m.cursor = 0
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.cursor = 0
	return m, cmd
}

func (m browseModel) visible() []model.CollectionEntry {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	if q == "" {
		return m.entries
	}
	out := make([]model.CollectionEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}

func (m browseModel) View() string {
	if m.fatalErr != nil {
		return browseErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}

	linked, indexed := 0, 0
	for _, e := range m.entries {
		if e.Linked {
			linked++
		}
		if e.Indexed {
			indexed++
		}
	}
	header := browseTitleStyle.Render("warc-ops browse | collection "+m.collection) + "\n" +
		browseMutedStyle.Render(fmt.Sprintf("%d WARC | linked %d | indexed %d", len(m.entries), linked, indexed)) + "\n" +
		browseMutedStyle.Render("up/down: move | /: filter | s: sync selected | S: sync all | r: reload | q: quit")

	var body string
	if m.width < 90 {
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderListPanel(m.width), m.renderDetailsPanel(m.width))
	} else {
		leftW := clampInt(m.width/2, 34, 64)
		rightW := m.width - leftW - 1
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderListPanel(leftW), m.renderDetailsPanel(rightW))
	}
	parts := []string{header}
	if m.mode == browseModeFilter || m.filter.Value() != "" {
		parts = append(parts, m.filter.View())
	}
	parts = append(parts, body, m.renderStatusLine(m.width))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m browseModel) renderListPanel(width int) string {
	visible := m.visible()
	maxRows := clampInt(m.height-12, 4, 24)
	start, end := listWindow(len(visible), m.cursor, maxRows)

	lines := make([]string, 0, maxRows+2)
	if len(visible) == 0 {
		lines = append(lines, browseMutedStyle.Render("No WARC files match."))
	}
	if start > 0 {
		lines = append(lines, browseMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		e := visible[i]
		mark := "  "
		switch {
		case e.Linked && e.Indexed:
			mark = "✓ "
		case e.Linked:
			mark = "~ "
		}
		line := truncateRunes(mark+e.Name, maxInt(width-6, 10))
		if i == m.cursor {
			line = browseSelStyle.Width(maxInt(width-4, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(visible) {
		lines = append(lines, browseMutedStyle.Render("..."))
	}
	return browsePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m browseModel) renderDetailsPanel(width int) string {
	visible := m.visible()
	lines := []string{}
	if len(visible) == 0 || m.cursor >= len(visible) {
		lines = append(lines, "Nothing selected")
	} else {
		e := visible[m.cursor]
		lines = append(lines, "WARC Details", "")
		lines = append(lines, kv("name", e.Name))
		lines = append(lines, kv("path", e.WARC))
		lines = append(lines, kv("linked", yesNo(e.Linked)))
		lines = append(lines, kv("link", e.LinkPath))
		lines = append(lines, kv("indexed", yesNo(e.Indexed)))
		lines = append(lines, kv("index", e.IndexPath))
		lines = append(lines, kv("index_size", archive.FormatBytesIEC(e.IndexSize)))
	}
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(width-6, 12))
	}
	return browsePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m browseModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = "Tip: ✓ linked and indexed, ~ linked only. s syncs just the selected file."
	}
	style := browseMutedStyle
	if strings.HasPrefix(strings.ToLower(msg), "error:") {
		style = browseErrorStyle
	} else if strings.HasPrefix(strings.ToLower(msg), "sync ") {
		style = browseOKStyle
	}
	return style.Width(width).Render(truncateRunes(msg, maxInt(width-2, 10)))
}

func loadCollectionCmd(globs []string, archiveDir, indexDir string) tea.Cmd {
	return func() tea.Msg {
		entries, err := discovery.CollectionState(globs, archiveDir, indexDir)
		if err != nil {
			return browseLoadedMsg{err: err}
		}
		return browseLoadedMsg{entries: entries}
	}
}

func kv(k, v string) string {
	return fmt.Sprintf("%s: %s", k, v)
}

// escapeGlob quotes the pattern metacharacters in a literal path.
func escapeGlob(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
