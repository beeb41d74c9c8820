package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"newslens/internal/domain"
)

// SearchPort is the TUI-facing subset of the search service.
type SearchPort interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}

// BrowsePort lists the stored articles.
type BrowsePort interface {
	List(ctx context.Context) ([]domain.ArticleRecord, error)
}

// SuggestPort generates related-search suggestions. Optional.
type SuggestPort interface {
	RelatedSearches(ctx context.Context, query string, n int) ([]string, error)
}

type mode int

const (
	modeSearch mode = iota
	modeBrowse
)

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	searcher SearchPort
	browser  BrowsePort
	suggest  SuggestPort
	topK     int

	mode      mode
	input     textinput.Model
	viewport  viewport.Model
	results   []domain.SearchResult
	articles  []domain.ArticleRecord
	related   []string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a new TUI model instance. suggest may be nil.
func New(searcher SearchPort, browser BrowsePort, suggest SuggestPort, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter (tab: browse)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if topK <= 0 {
		topK = 10
	}
	return Model{
		searcher: searcher,
		browser:  browser,
		suggest:  suggest,
		topK:     topK,
		input:    ti,
		viewport: vp,
		status:   "Ready. Type to search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header + status + query box + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderContent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			if m.mode == modeSearch {
				m.enterBrowse()
			} else {
				m.mode = modeSearch
				m.status = "Search mode."
			}
			m.viewport.SetContent(m.renderContent())
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.runSearch(q)
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		case "down":
			if n := m.itemCount(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		case "up":
			if n := m.itemCount(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderContent())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) runSearch(q string) {
	m.mode = modeSearch
	res, err := m.searcher.Search(context.Background(), q, m.topK)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.results = nil
		return
	}
	m.results = res
	m.cursor = 0
	m.lastQuery = q
	m.related = nil
	if m.suggest != nil {
		if sug, err := m.suggest.RelatedSearches(context.Background(), q, 3); err == nil {
			m.related = sug
		}
	}
	if len(res) == 0 {
		m.status = fmt.Sprintf("No matches for %q", q)
	} else {
		m.status = fmt.Sprintf("%d results for %q", len(res), q)
	}
}

func (m *Model) enterBrowse() {
	m.mode = modeBrowse
	arts, err := m.browser.List(context.Background())
	if err != nil {
		m.status = "Error: " + err.Error()
		m.articles = nil
		return
	}
	m.articles = arts
	m.cursor = 0
	m.status = fmt.Sprintf("Browsing %d stored articles.", len(arts))
}

func (m Model) itemCount() int {
	if m.mode == modeBrowse {
		return len(m.articles)
	}
	return len(m.results)
}

// View renders the TUI layout and current content.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "newslens — search"
	if m.mode == modeBrowse {
		title = "newslens — browse"
	}
	header := lipgloss.NewStyle().Bold(true).Render(title)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	body := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) renderContent() string {
	if m.mode == modeBrowse {
		return m.renderArticle()
	}
	return m.renderResult()
}

func (m Model) renderResult() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	r := m.results[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Result %d/%d  score=%.3f\n\n", m.cursor+1, len(m.results), r.Score)
	b.WriteString(headlineStyle.Render(r.Record.Headline))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(r.Record.URL))
	b.WriteString("\n\n")
	b.WriteString(highlightBestSentence(r.Record.Summary, m.lastQuery))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Topics: " + strings.Join(r.Record.Topics, ", ")))
	if len(m.related) > 0 {
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("Related: " + strings.Join(m.related, " · ")))
	}
	return b.String()
}

func (m Model) renderArticle() string {
	if len(m.articles) == 0 {
		return "No stored articles."
	}
	a := m.articles[m.cursor]
	var b strings.Builder
	fmt.Fprintf(&b, "Article %d/%d\n\n", m.cursor+1, len(m.articles))
	b.WriteString(headlineStyle.Render(a.Headline))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(a.URL))
	b.WriteString("\n\n")
	b.WriteString(a.Summary)
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Topics: " + strings.Join(a.Topics, ", ")))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Updated: " + a.UpdatedAt.Local().Format("2006-01-02 15:04")))
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headlineStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
