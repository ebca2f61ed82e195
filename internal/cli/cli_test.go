package cli

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"warc-ops/internal/model"
)

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Fatalf("nil must map to 0")
	}
	if ExitCode(errors.New("boom")) != 1 {
		t.Fatalf("plain errors must map to 1")
	}
	wrapped := fmt.Errorf("context: %w", &ExitError{Code: 4, Err: errors.New("bad")})
	if ExitCode(wrapped) != 4 {
		t.Fatalf("expected wrapped code 4")
	}
	outer := &ExitError{Code: 1, Err: &ExitError{Code: 3, Err: errors.New("inner")}}
	if ExitCode(outer) != 1 {
		t.Fatalf("outermost code wins")
	}

	child := exec.Command("sh", "-c", "exit 3")
	childErr := child.Run()
	var exitErr *exec.ExitError
	if !errors.As(childErr, &exitErr) {
		t.Fatalf("expected *exec.ExitError, got %v", childErr)
	}
	if got := ExitCode(fmt.Errorf("wb-manager init failed: %w", childErr)); got != 1 {
		t.Fatalf("a child's exit status must not become ours, got %d", got)
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("/data/a[1]*.warc"); got != `/data/a\[1]\*.warc` {
		t.Fatalf("got %q", got)
	}
}

func browseFixture() browseModel {
	m := newBrowseModel(nil, "web", "/a", "/i")
	m.entries = []model.CollectionEntry{
		{WARC: "/src/alpha.warc.gz", Name: "alpha.warc.gz", Linked: true, Indexed: true},
		{WARC: "/src/beta.warc.gz", Name: "beta.warc.gz", Linked: true},
		{WARC: "/src/gamma.warc", Name: "gamma.warc"},
	}
	return m
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestBrowseCursorMovement(t *testing.T) {
	m := browseFixture()
	next, _ := m.updateList(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(browseModel)
	next, _ = m.updateList(key('j'))
	m = next.(browseModel)
	next, _ = m.updateList(key('j'))
	m = next.(browseModel)
	if m.cursor != 2 {
		t.Fatalf("cursor must stop at last row, got %d", m.cursor)
	}
	next, _ = m.updateList(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(browseModel)
	if m.cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", m.cursor)
	}
}

func TestBrowseSyncSelectedQuits(t *testing.T) {
	m := browseFixture()
	m.cursor = 1
	next, cmd := m.updateList(key('s'))
	m = next.(browseModel)
	if m.syncTarget != "/src/beta.warc.gz" {
		t.Fatalf("expected beta selected for sync, got %q", m.syncTarget)
	}
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
}

func TestBrowseSyncSkipsCompleteEntry(t *testing.T) {
	m := browseFixture()
	next, cmd := m.updateList(key('s'))
	m = next.(browseModel)
	if m.syncTarget != "" || cmd != nil {
		t.Fatalf("fully synced entry must not launch sync")
	}
	if m.statusMessage == "" {
		t.Fatalf("expected status message")
	}
}

func TestBrowseFilterNarrowsList(t *testing.T) {
	m := browseFixture()
	next, _ := m.updateList(key('/'))
	m = next.(browseModel)
	if m.mode != browseModeFilter {
		t.Fatalf("expected filter mode")
	}
	for _, r := range "gam" {
		next, _ = m.Update(key(r))
		m = next.(browseModel)
	}
	if got := m.visible(); len(got) != 1 || got[0].Name != "gamma.warc" {
		t.Fatalf("unexpected filtered list: %+v", got)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(browseModel)
	if m.mode != browseModeList {
		t.Fatalf("enter must return to list mode")
	}
	next, _ = m.updateList(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(browseModel)
	if len(m.visible()) != 3 {
		t.Fatalf("esc must clear the filter")
	}
}

func TestBrowseLoadedErrorQuits(t *testing.T) {
	m := browseFixture()
	next, cmd := m.Update(browseLoadedMsg{err: errors.New("bad glob")})
	m = next.(browseModel)
	if m.fatalErr == nil || cmd == nil {
		t.Fatalf("expected fatal error and quit")
	}
}
