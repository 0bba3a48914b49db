package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/wricardo/minigame/game/room"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("15")).
			Padding(0, 1)

	hostStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	selfStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	systemStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245"))

	emojiStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("201"))

	closedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("Room %d  ·  player %d", m.roomID, m.playerID)))
	sb.WriteString("\n\n")

	roomPanel := panelStyle.Render(renderRoom(m.room, m.playerID))
	chatPanel := panelStyle.Render(m.renderLog(m.logHeight()))
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, roomPanel, chatPanel))
	sb.WriteString("\n")

	if m.disconnected {
		sb.WriteString(closedStyle.Render("disconnected") + " · press esc or ctrl+c to exit\n")
	} else {
		sb.WriteString("> " + m.input + "█\n")
		sb.WriteString(systemStyle.Render("/help for commands · esc leaves the room"))
	}

	return sb.String()
}

func (m Model) logHeight() int {
	if m.height <= 8 {
		return 15
	}
	return m.height - 8
}

func (m Model) renderLog(n int) string {
	lines := m.log
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	if len(lines) == 0 {
		return systemStyle.Render("no messages yet")
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		stamp := l.at.Format("15:04:05")
		switch l.kind {
		case "system":
			out = append(out, systemStyle.Render(stamp+" "+l.text))
		case "emoji":
			out = append(out, stamp+" "+emojiStyle.Render(l.text))
		default:
			out = append(out, stamp+" "+l.text)
		}
	}
	return strings.Join(out, "\n")
}

// renderRoom lists players and car occupancy.
func renderRoom(r *room.Room, self int32) string {
	if r == nil {
		return systemStyle.Render("waiting for snapshot...")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("weather %d · background %d\n\n", r.WeatherID, r.BackgroundID))

	sb.WriteString("Players\n")
	for _, p := range r.Players {
		label := fmt.Sprintf("%d %s", p.PlayerID, p.PlayerName)
		switch {
		case r.IsHost(p.PlayerID):
			label = hostStyle.Render(label + " ★")
		case p.PlayerID == self:
			label = selfStyle.Render(label)
		}
		sb.WriteString("  " + label + "\n")
	}

	sb.WriteString("\nCars\n")
	for _, car := range r.Cars {
		ids := make([]string, 0, len(car.PlayerIDs))
		for _, id := range car.PlayerIDs {
			ids = append(ids, fmt.Sprintf("%d", id))
		}
		occupants := strings.Join(ids, ",")
		if occupants == "" {
			occupants = "-"
		}
		sb.WriteString(fmt.Sprintf("  #%d skin %d: %s\n", car.CarID, car.SkinID, occupants))
	}

	return sb.String()
}
