package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/journey-engine/pkg/content"
	"github.com/jwebster45206/journey-engine/pkg/turn"
	"github.com/muesli/reflow/wordwrap"
)

const (
	AgentName       = "Guide"
	PlaceHolderText = "explore tokyo, yes, no, tip, help..."
)

type role int

const (
	roleGuide role = iota
	roleUser
	roleTip
	roleSystem
	roleError
)

type entry struct {
	role role
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	client       *http.Client
	session      turn.Session
	transcript   []entry
	cities       []content.City
	chatViewport viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	loading      bool

	showQuitModal bool
	progressTick  int
}

type turnResultMsg struct {
	result *turn.Result
	err    error
}

type citiesLoadedMsg struct {
	cities []content.City
	err    error
}

type progressTickMsg struct{}

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	guideStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	tipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")) // purple

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:       cfg,
		client:       client,
		textarea:     ta,
		chatViewport: chatVp,
		metaViewport: viewport.New(20, 20),
		loading:      true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.loadCities(),
		m.send(turn.Event{Type: turn.Resume}),
		progressTick(),
	)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		return m, vpCmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatWidth := int(float64(m.width)*0.75) - 4
		metaWidth := m.width - chatWidth - 6

		m.chatViewport.Width = chatWidth - 2
		m.chatViewport.Height = m.height - 7
		m.metaViewport.Width = metaWidth - 2
		m.metaViewport.Height = m.height - 4
		m.textarea.SetWidth(chatWidth - 4)

		m.ready = true
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(m.config.UserID, m.session))

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			if err := clipboard.WriteAll(m.plainTranscript()); err != nil {
				m.append(roleError, "Copy failed: "+err.Error())
			} else {
				m.append(roleSystem, "Transcript copied to clipboard.")
			}
			m.writeChatContent()
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m.handleInput(input)
		}

	case citiesLoadedMsg:
		if msg.err != nil {
			m.append(roleError, "Error: "+msg.err.Error())
		} else {
			m.cities = msg.cities
		}
		m.writeChatContent()

	case turnResultMsg:
		m.loading = false
		if msg.err != nil {
			m.append(roleError, "Error: "+msg.err.Error())
		} else {
			m.applyResult(msg.result)
		}
		m.writeChatContent()
		m.metaViewport.SetContent(writeMetadata(m.config.UserID, m.session))

	case progressTickMsg:
		if m.loading {
			m.progressTick++
			m.writeChatContent()
			return m, progressTick()
		}
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.chatViewport, vpCmd = m.chatViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	if strings.EqualFold(input, "/cities") {
		m.append(roleSystem, citiesLine(m.cities))
		m.writeChatContent()
		return m, nil
	}
	if strings.EqualFold(input, "/help") {
		m.append(roleSystem, commandHelp)
		m.writeChatContent()
		return m, nil
	}

	ev, ok, err := parseCommand(input)
	switch {
	case errors.Is(err, errQuit):
		return m, tea.Quit
	case err != nil:
		m.append(roleError, err.Error())
		m.writeChatContent()
		return m, nil
	case !ok:
		m.append(roleUser, input)
		m.append(roleSystem, "Say yes or no, explore a city, or type /help.")
		m.writeChatContent()
		return m, nil
	}

	m.append(roleUser, input)
	m.loading = true
	m.progressTick = 0
	m.writeChatContent()
	return m, tea.Batch(m.send(ev), progressTick())
}

func (m *ConsoleUI) applyResult(res *turn.Result) {
	d := res.Directive
	m.session = res.Session

	if d.PrimaryText != "" {
		m.append(roleGuide, d.PrimaryText)
	}
	if d.TipText != "" {
		m.append(roleTip, d.TipText)
	}
	if d.FollowupText != "" {
		m.append(roleGuide, d.FollowupText)
	}
	if d.Ended {
		m.append(roleSystem, "Say explore <city> to start again, or quit to leave.")
	}
}

func (m *ConsoleUI) append(r role, text string) {
	m.transcript = append(m.transcript, entry{role: r, text: text})
}

func (m ConsoleUI) send(ev turn.Event) tea.Cmd {
	ev.UserID = m.config.UserID
	ev.DeviceID = "console"
	ev.Session = m.session
	return func() tea.Msg {
		res, err := sendTurn(m.client, m.config.APIBaseURL, ev)
		return turnResultMsg{res, err}
	}
}

func (m ConsoleUI) loadCities() tea.Cmd {
	return func() tea.Msg {
		cities, err := listCities(m.client, m.config.APIBaseURL)
		return citiesLoadedMsg{cities, err}
	}
}

// writeChatContent rebuilds the transcript for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	chatWidth := m.chatViewport.Width - 6
	if chatWidth < 20 {
		chatWidth = 20
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("JOURNEY ENGINE") + "\n\n")
	b.WriteString("Explore a city one question at a time. Type /help for commands.\n\n")
	b.WriteString(separatorStyle.Render(strings.Repeat("─", chatWidth)) + "\n\n")

	for _, e := range m.transcript {
		b.WriteString(renderEntry(e, chatWidth) + "\n\n")
	}

	if m.loading {
		b.WriteString(m.renderProgressBar())
	}

	m.chatViewport.SetContent(b.String())
	m.chatViewport.GotoBottom()
}

func renderEntry(e entry, width int) string {
	switch e.role {
	case roleUser:
		return userStyle.Render("You: ") + wordwrap.String(e.text, width-5)
	case roleTip:
		return tipStyle.Render("Tip: ") + wordwrap.String(e.text, width-5)
	case roleError:
		return errorStyle.Render(wordwrap.String(e.text, width))
	case roleSystem:
		return promptStyle.Render(wordwrap.String(e.text, width))
	default:
		prefix := AgentName + ": "
		return guideStyle.Render(prefix) + wordwrap.String(e.text, width-len(prefix))
	}
}

func (m ConsoleUI) plainTranscript() string {
	var b strings.Builder
	for _, e := range m.transcript {
		switch e.role {
		case roleUser:
			b.WriteString("You: ")
		case roleTip:
			b.WriteString("Tip: ")
		case roleGuide:
			b.WriteString(AgentName + ": ")
		}
		b.WriteString(e.text + "\n")
	}
	return b.String()
}

func writeMetadata(userID string, s turn.Session) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("JOURNEY") + "\n\n")

	b.WriteString("User:\n")
	if len(userID) > 16 {
		userID = userID[:16] + "..."
	}
	b.WriteString(userID + "\n\n")

	if s.PlayerNumber != 0 {
		b.WriteString(fmt.Sprintf("Player:\n%d\n\n", s.PlayerNumber))
	}

	if s.Journey == nil {
		b.WriteString("No active journey\n\n")
	} else {
		j := s.Journey
		b.WriteString("City:\n" + s.City + "\n\n")
		b.WriteString(fmt.Sprintf("Question:\n%d\n\n", j.Pending()))
		b.WriteString(level("Money:", j.MoneyLevel, j.Low()))
		b.WriteString(level("Energy:", j.EnergyLevel, j.Low()))
		b.WriteString(fmt.Sprintf("Turns:\n%d\n\n", j.TurnsCompleted))
	}

	b.WriteString("Keys:\n")
	b.WriteString("• Enter: Send\n")
	b.WriteString("• Ctrl+Y: Copy\n")
	b.WriteString("• Ctrl+C: Quit\n")
	return b.String()
}

func level(label string, v int, low bool) string {
	line := fmt.Sprintf("%s\n%d", label, v)
	if low {
		line += warnStyle.Render(" (low)")
	}
	return line + "\n\n"
}

func citiesLine(cities []content.City) string {
	if len(cities) == 0 {
		return "No cities are available."
	}
	names := make([]string, len(cities))
	for i, c := range cities {
		names[i] = c.Name
	}
	return "Cities: " + strings.Join(names, ", ")
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(modalTitleStyle.Render("Quit?"))
	b.WriteString("\n\n")
	b.WriteString("Your progress is saved. You can resume later.")
	b.WriteString("\n\n")
	b.WriteString(promptStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(50).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.75) - 4
	metaWidth := m.width - chatWidth - 6

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			m.textarea.View(),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}

func (m ConsoleUI) renderProgressBar() string {
	usable := m.chatViewport.Width - 6
	if usable > 60 {
		usable = 60
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		switch {
		case i < filled:
			bar.WriteString("█")
		case i == filled && frame%4 < 2:
			bar.WriteString("▓")
		default:
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
