// Command roomclient is a terminal client for the room server. It joins a
// room over WebSocket, shows the live room snapshot and relays chat.
package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "roomclient",
		Usage: "Join a room and chat from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "ws://localhost:7777/ws",
				Usage:   "WebSocket server address",
				Sources: cli.EnvVars("MINIGAME_SERVER"),
			},
			&cli.IntFlag{Name: "player-id", Usage: "Player id", Required: true},
			&cli.IntFlag{Name: "room-id", Usage: "Room id (the host's player id)", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Player name (defaults to OS username)"},
			&cli.IntFlag{Name: "car-id", Usage: "Car to sit in", Value: 1},
			&cli.IntFlag{Name: "skin-id", Usage: "Skin of the car"},
			&cli.IntFlag{Name: "weather-id", Usage: "Weather preset"},
			&cli.IntFlag{Name: "background-id", Usage: "Background preset"},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	name := cmd.String("name")
	if name == "" {
		if u, err := user.Current(); err == nil && u.Username != "" {
			name = u.Username
		} else {
			name = "Player"
		}
	}

	params := JoinParams{
		PlayerID:     int32(cmd.Int("player-id")),
		PlayerName:   name,
		RoomID:       int32(cmd.Int("room-id")),
		CarID:        int32(cmd.Int("car-id")),
		SkinID:       int32(cmd.Int("skin-id")),
		WeatherID:    int32(cmd.Int("weather-id")),
		BackgroundID: int32(cmd.Int("background-id")),
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Connect to server
	client, err := Dial(dialCtx, cmd.String("server"), params)
	if err != nil {
		return fmt.Errorf("failed to join room %d at %s: %w (create it first with POST /createroom)", params.RoomID, cmd.String("server"), err)
	}
	defer client.Close()

	model := NewModel(params.PlayerID, params.RoomID, client)

	p := tea.NewProgram(model, tea.WithAltScreen())

	// Wire the program into the client so readPump can send tea.Msgs
	client.SetProgram(p)
	client.Start()

	// Run the TUI (blocking)
	_, err = p.Run()
	return err
}
