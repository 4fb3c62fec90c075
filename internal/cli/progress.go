package cli

import (
	"fmt"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/mfloris/doctran/internal/api"
	"github.com/mfloris/doctran/internal/syncer"
)

// refreshInterval is how often the TUI re-reads the cached task snapshot.
// The snapshot itself is kept current by the poll scheduler and the push
// channel; this tick only redraws.
const refreshInterval = 500 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers re-reading the cached task.
type tickMsg time.Time

// progressModel is the bubbletea model for live task progress.
type progressModel struct {
	sync     *syncer.Syncer
	taskID   string
	task     *api.Task
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

func newProgressModel(s *syncer.Syncer, taskID string) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		sync:     s,
		taskID:   taskID,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start the redraw ticker).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		if task, ok := syncer.Tasks(m.sync.Store).Get(m.taskID); ok {
			m.task = &task
			if task.Status.Terminal() {
				m.done = true
				if task.Status == api.StatusFailed {
					if task.Error != "" {
						m.err = fmt.Errorf("%s", task.Error)
					} else {
						m.err = fmt.Errorf("translation failed")
					}
				}
				return m, tea.Quit
			}
		}
		return m, tickCmd()

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.task == nil {
		return "Loading task status...\n"
	}

	pct := float64(m.task.Progress) / 100

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.task.Status))
	progressBar := m.progress.ViewAs(pct)

	detail := m.task.ProgressMessage
	if detail == "" {
		detail = fmt.Sprintf("%d%%", m.task.Progress)
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to continue in background")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, detail, hint)
}

func (m progressModel) finalView() string {
	if m.quitting {
		msg := fmt.Sprintf("\nTask %s continues in background.\nUse 'doctran tasks get %s' to check status.\n",
			m.taskID, m.taskID)
		return m.theme.hintStyle().Render(msg)
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Translation failed: %s\n", m.err))
	}

	if m.task != nil && m.task.Status == api.StatusCanceled {
		return m.theme.hintStyle().Render("\nTask canceled.\n")
	}

	var output string
	output += m.theme.completedStyle().Render("✓ Completed") + "\n"
	if m.task != nil {
		if m.task.PageCount > 0 {
			output += fmt.Sprintf("\n  Pages translated: %d\n", m.task.PageCount)
		}
		if m.task.MonoOutputURL != "" {
			output += fmt.Sprintf("  Mono:    %s\n", m.task.MonoOutputURL)
		}
		if m.task.DualOutputURL != "" {
			output += fmt.Sprintf("  Dual:    %s\n", m.task.DualOutputURL)
		}
		if m.task.ZipOutputURL != "" {
			output += fmt.Sprintf("  Archive: %s\n", m.task.ZipOutputURL)
		}
	}
	return output
}

// tickCmd returns a command that sends a tick after the refresh interval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runTaskProgress runs the interactive progress UI for one task. The task
// feed is kept live by the poll subscription and the push channel; both are
// released when the UI exits. Returns nil on success or Ctrl+C (background),
// error on task failure.
func runTaskProgress(taskID string) error {
	unsubscribe := syncClient.SubscribeTasks()
	defer unsubscribe()

	channel := syncClient.TaskChannel()
	channel.Start()
	defer channel.Stop()

	model := newProgressModel(syncClient, taskID)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(progressModel); ok {
		// Ctrl+C backgrounds the task rather than failing it.
		if m.quitting {
			return nil
		}
		if m.err != nil {
			return m.err
		}
	}

	return nil
}
