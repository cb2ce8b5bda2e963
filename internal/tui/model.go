package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studyrag/internal/domain"
	"studyrag/internal/generation"
	"studyrag/internal/service"
	"studyrag/internal/textproc"
)

// SessionPort is the TUI-facing subset of a study session.
type SessionPort interface {
	Ask(ctx context.Context, q service.Question) (service.Answer, error)
	Resubmit(ctx context.Context, prompt, imagePath string) generation.Result
}

// AnswerMsg carries the outcome of an Ask.
type AnswerMsg struct {
	Query  string
	Answer service.Answer
	Err    error
}

// ResubmitMsg carries the outcome of resubmitting a failed prompt.
type ResubmitMsg struct {
	Result generation.Result
}

// ReloadedMsg reports a document re-indexed by the folder watcher.
type ReloadedMsg struct {
	Path   string
	Loaded service.Loaded
	Err    error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx            context.Context
	session        SessionPort
	input          textinput.Model
	viewport       viewport.Model
	summary        string
	studentContext string
	image          string

	answer      string
	chunks      []domain.Chunk
	showSources bool
	lastQuery   string
	lastPrompt  string
	failed      bool
	pending     bool

	status string
	ready  bool
}

// New creates a chat model. summary is shown under the header; studentContext
// is sent with every question.
func New(ctx context.Context, session SessionPort, summary, studentContext string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /image <path>, /context <text>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:            ctx,
		session:        session,
		input:          ti,
		viewport:       vp,
		summary:        summary,
		studentContext: studentContext,
		status:         "Loaded. Ask away.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		summaryLines := strings.Count(m.summary, "\n") + 1
		reserved := 1 + summaryLines + 1 + qh + 1 // header, summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil

	case AnswerMsg:
		m.pending = false
		if msg.Err != nil {
			m.status = "Error: " + msg.Err.Error()
			return m, nil
		}
		m.lastQuery = msg.Query
		m.lastPrompt = msg.Answer.Prompt.Text
		m.chunks = msg.Answer.Prompt.Chunks
		m.applyResult(msg.Answer.Result)
		return m, nil

	case ResubmitMsg:
		m.pending = false
		m.applyResult(msg.Result)
		return m, nil

	case ReloadedMsg:
		if msg.Err != nil {
			m.status = fmt.Sprintf("Reload of %s failed: %v", msg.Path, msg.Err)
		} else {
			m.status = fmt.Sprintf("Reloaded %s (%d chunks)", msg.Loaded.ID, msg.Loaded.Chunks)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if cmd, handled := m.submit(); handled {
				return m, cmd
			}
		case "tab":
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case "ctrl+r":
			if m.failed && !m.pending && m.lastPrompt != "" {
				m.pending = true
				m.status = "Resubmitting..."
				return m, m.resubmit(m.lastPrompt, m.image)
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit handles the input line: slash commands or a question.
func (m *Model) submit() (tea.Cmd, bool) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" || m.pending {
		return nil, false
	}
	m.input.SetValue("")

	switch {
	case line == "/image":
		m.image = ""
		m.status = "Image cleared."
		return nil, true
	case strings.HasPrefix(line, "/image "):
		m.image = strings.TrimSpace(strings.TrimPrefix(line, "/image "))
		m.status = "Image attached: " + m.image
		return nil, true
	case strings.HasPrefix(line, "/context "):
		m.studentContext = strings.TrimSpace(strings.TrimPrefix(line, "/context "))
		m.status = "Context set."
		return nil, true
	}

	m.pending = true
	m.status = fmt.Sprintf("Thinking about %q...", line)
	return m.ask(service.Question{Text: line, Context: m.studentContext, ImagePath: m.image}), true
}

func (m Model) ask(q service.Question) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		ans, err := session.Ask(ctx, q)
		return AnswerMsg{Query: q.Text, Answer: ans, Err: err}
	}
}

func (m Model) resubmit(prompt, image string) tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		return ResubmitMsg{Result: session.Resubmit(ctx, prompt, image)}
	}
}

func (m *Model) applyResult(res generation.Result) {
	if res.OK() {
		m.failed = false
		m.answer = res.Text
		m.status = fmt.Sprintf("Answered %q from %d chunks", m.lastQuery, len(m.chunks))
	} else {
		m.failed = true
		m.answer = ""
		m.status = "Generation failed: " + res.Err.Error() + " (ctrl+r to retry)"
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoTop()
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Study Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.showSources {
		return m.renderSources()
	}
	switch {
	case m.answer != "":
		return "Answer  (tab: sources)\n\n" + m.answer
	case m.failed:
		return "No answer. Press ctrl+r to resubmit the same prompt."
	default:
		return "No answer yet."
	}
}

func (m Model) renderSources() string {
	if len(m.chunks) == 0 {
		return "No sources yet."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Sources %d  (tab: answer)\n", len(m.chunks)))
	for _, c := range m.chunks {
		sb.WriteString(fmt.Sprintf("\n%s  p.%d\n", c.DocumentID, c.PageNumber))
		sb.WriteString(highlightBestSentence(c.Text, m.lastQuery))
		sb.WriteString("\n")
	}
	return sb.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightBestSentence emphasises the sentence sharing the most content
// words with the query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := textproc.Sentences(text)
	qTokens := tokenSet(textproc.ContentTokens(query))
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(qTokens, s); score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	out := make([]string, len(sentences))
	copy(out, sentences)
	out[bestIdx] = highlightStyle.Render(out[bestIdx])
	return strings.Join(out, " ")
}

func tokenSet(tokens []string) map[string]struct{} {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlap(query map[string]struct{}, sentence string) int {
	score := 0
	for t := range tokenSet(textproc.Tokens(sentence)) {
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}
