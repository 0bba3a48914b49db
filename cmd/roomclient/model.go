package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/wricardo/minigame/game/room"
)

const maxLogLines = 200

// chatSender is the part of Client the model drives.
type chatSender interface {
	SendChat(kind, content string) error
	Quit() error
}

type logLine struct {
	at   time.Time
	text string
	kind string // text, emoji, system
}

// Model is the bubbletea model for one joined player.
type Model struct {
	playerID int32
	roomID   int32
	client   chatSender

	room    *room.Room
	log     []logLine
	input   string
	leaving bool

	disconnected bool
	closeCode    int
	closeReason  string

	width  int
	height int
	now    func() time.Time
}

// NewModel creates a model for the client TUI.
func NewModel(playerID, roomID int32, client chatSender) Model {
	return Model{
		playerID: playerID,
		roomID:   roomID,
		client:   client,
		now:      time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ChatMsg:
		m.appendLog(msg.Kind, fmt.Sprintf("%s: %s", m.speaker(msg.PlayerID), msg.Content))
		return m, nil

	case SyncMsg:
		snapshot := msg.Room
		m.room = &snapshot
		m.appendLog("system", fmt.Sprintf("room %d: %d players, %d cars", snapshot.RoomID, len(snapshot.Players), len(snapshot.Cars)))
		return m, nil

	case DisconnectedMsg:
		m.disconnected = true
		m.closeCode = msg.Code
		m.closeReason = msg.Reason
		m.appendLog("system", describeClose(msg))
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		if m.disconnected {
			return m, tea.Quit
		}
		return m.quitRoom()

	case tea.KeyEnter:
		line := strings.TrimSpace(m.input)
		m.input = ""
		if line == "" {
			return m, nil
		}
		if m.disconnected {
			if line == "/exit" || line == "/quit" {
				return m, tea.Quit
			}
			return m, nil
		}
		return m.submit(line)

	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil

	case tea.KeySpace:
		m.input += " "
		return m, nil

	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}

	return m, nil
}

// submit sends a typed line. "/emoji X" sends an emoji frame, "/quit" leaves
// the room and everything else is text.
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	switch {
	case line == "/quit" || line == "/exit":
		return m.quitRoom()
	case line == "/help":
		m.appendLog("system", "type to chat, /emoji <e> to react, /quit or esc to leave, ctrl+c to exit")
		return m, nil
	case strings.HasPrefix(line, "/emoji "):
		content := strings.TrimSpace(strings.TrimPrefix(line, "/emoji "))
		if err := m.client.SendChat("emoji", content); err != nil {
			m.appendLog("system", "send failed: "+err.Error())
		}
		return m, nil
	default:
		if err := m.client.SendChat("text", line); err != nil {
			m.appendLog("system", "send failed: "+err.Error())
		}
		return m, nil
	}
}

func (m Model) quitRoom() (tea.Model, tea.Cmd) {
	if m.leaving {
		return m, nil
	}
	m.leaving = true
	if err := m.client.Quit(); err != nil {
		m.appendLog("system", "quit failed: "+err.Error())
		return m, tea.Quit
	}
	m.appendLog("system", "leaving room...")
	return m, nil
}

func (m *Model) appendLog(kind, text string) {
	m.log = append(m.log, logLine{at: m.now(), text: text, kind: kind})
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

// speaker names a player from the latest snapshot.
func (m Model) speaker(playerID int32) string {
	if playerID == m.playerID {
		return "you"
	}
	if m.room != nil {
		for _, p := range m.room.Players {
			if p.PlayerID == playerID && p.PlayerName != "" {
				return p.PlayerName
			}
		}
	}
	return fmt.Sprintf("player %d", playerID)
}

func describeClose(msg DisconnectedMsg) string {
	switch msg.Code {
	case 1000:
		return "left the room"
	case 1001:
		return "server shutting down"
	case 1008:
		return "room closed by host"
	case 1006:
		return "connection lost"
	case 0:
		if msg.Err != nil {
			return "connection lost: " + msg.Err.Error()
		}
		return "connection lost"
	default:
		return fmt.Sprintf("connection closed (%d %s)", msg.Code, msg.Reason)
	}
}
