package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/planbridge/pkg/snapshot"
)

var (
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	listHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// WorkspaceRow is one workspace with its story count.
type WorkspaceRow struct {
	Workspace snapshot.Workspace
	Stories   int
}

// WorkspaceListModel is the bubbletea model of the workspace picker. Typing
// "/" starts a filter that matches workspace ids and names.
type WorkspaceListModel struct {
	Rows     []WorkspaceRow
	Filter   string
	Cursor   int
	Offset   int
	Height   int
	Selected *snapshot.Workspace

	filtering bool
}

// NewWorkspaceListModel creates a picker over rows.
func NewWorkspaceListModel(rows []WorkspaceRow) WorkspaceListModel {
	return WorkspaceListModel{Rows: rows, Height: 15}
}

// visible returns the rows matching the filter, in input order.
func (m WorkspaceListModel) visible() []WorkspaceRow {
	if m.Filter == "" {
		return m.Rows
	}
	q := strings.ToLower(m.Filter)
	var out []WorkspaceRow
	for _, r := range m.Rows {
		if strings.Contains(strings.ToLower(r.Workspace.ID), q) || strings.Contains(strings.ToLower(r.Workspace.Name), q) {
			out = append(out, r)
		}
	}
	return out
}

func (m WorkspaceListModel) Init() tea.Cmd { return nil }

func (m WorkspaceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "/":
			m.filtering = true
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "enter":
			return m.choose()
		}
	}
	return m, nil
}

func (m WorkspaceListModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.filtering = false
		m.Filter = ""
	case tea.KeyEnter:
		return m.choose()
	case tea.KeyBackspace:
		if r := []rune(m.Filter); len(r) > 0 {
			m.Filter = string(r[:len(r)-1])
		}
	case tea.KeyUp:
		m.move(-1)
	case tea.KeyDown:
		m.move(1)
	case tea.KeyRunes, tea.KeySpace:
		m.Filter += string(msg.Runes)
	default:
		return m, nil
	}
	m.Cursor = min(m.Cursor, max(len(m.visible())-1, 0))
	m.Offset = min(m.Offset, m.Cursor)
	return m, nil
}

// move shifts the cursor by delta within the visible rows and scrolls the
// window to keep it in view.
func (m *WorkspaceListModel) move(delta int) {
	n := len(m.visible())
	m.Cursor = min(max(m.Cursor+delta, 0), max(n-1, 0))
	switch {
	case m.Cursor < m.Offset:
		m.Offset = m.Cursor
	case m.Cursor >= m.Offset+m.Height:
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m WorkspaceListModel) choose() (tea.Model, tea.Cmd) {
	rows := m.visible()
	if len(rows) == 0 {
		if m.filtering {
			return m, nil
		}
		return m, tea.Quit
	}
	ws := rows[m.Cursor].Workspace
	m.Selected = &ws
	return m, tea.Quit
}

func (m WorkspaceListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Workspace"))
	b.WriteString("\n")
	if m.filtering {
		b.WriteString(StyleHighlight.Render("/"+m.Filter) + listDimStyle.Render("▏  esc clear"))
	} else {
		b.WriteString(listDimStyle.Render("↑/↓ navigate  / filter  ⏎ select  q quit"))
	}
	b.WriteString("\n\n")

	rows := m.visible()
	end := min(m.Offset+m.Height, len(rows))
	cells := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		marker := "  "
		if i == m.Cursor {
			marker = "▸ "
		}
		cells = append(cells, append([]string{marker}, workspaceCells(rows[i])...))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(listDimStyle).
		Headers("", "Workspace", "Name", "Stories", "Updated").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return listHeaderStyle
			}
			style := lipgloss.NewStyle()
			if col >= 3 {
				style = style.Foreground(colorDim)
			}
			if m.Offset+row != m.Cursor {
				return style
			}
			if col < 3 {
				return style.Foreground(colorGreen).Bold(true)
			}
			return style.Foreground(colorGray).Bold(true)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	if len(rows) == 0 {
		b.WriteString(listDimStyle.Render("  no matching workspaces"))
	} else {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(rows))))
	}
	return b.String()
}

// workspaceCells returns the id, name, story count and last update of a row.
func workspaceCells(r WorkspaceRow) []string {
	updated := "—"
	if r.Workspace.UpdatedAt != "" {
		updated = formatRelativeTime(r.Workspace.UpdatedAt)
	}
	return []string{r.Workspace.ID, r.Workspace.Name, strconv.Itoa(r.Stories), updated}
}

// formatRelativeTime renders an RFC 3339 time as "5m ago", "3h ago", "2d ago"
// or a date for anything older than a week.
func formatRelativeTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}

	switch diff := time.Since(t); {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
