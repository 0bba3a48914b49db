// Command minigame starts the multiplayer room server.
//
// It supports three commands:
//  1. "serve" (default) – runs the HTTP server exposing the REST API, the WebSocket endpoint, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "validate-config" – loads and validates the configuration, then exits
//
// Flags control host/port, the config file, storage and rate limiting
// backends, debug logging, and optional ngrok tunneling for easy external
// access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/minigame/api"
	"github.com/wricardo/minigame/config"
	"github.com/wricardo/minigame/game/liveness"
	"github.com/wricardo/minigame/game/room"
	"github.com/wricardo/minigame/game/service"
	"github.com/wricardo/minigame/game/store"
	"github.com/wricardo/minigame/ratelimit"
	"github.com/wricardo/minigame/transport/mcp"
	"github.com/wricardo/minigame/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Minigame Room Server"
)

// main loads .env, then runs the command tree.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("error loading .env file", "error", err)
		}
	} else {
		slog.Info("loaded environment variables from .env file")
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCommand builds the command tree. Flags override the config file and the
// MINIGAME_* environment.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "minigame",
		Usage:   "Multiplayer room server with WebSocket chat and car assignment",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				Sources: cli.EnvVars("MINIGAME_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "HTTP server bind address",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP server port",
			},
			&cli.StringFlag{
				Name:  "database-url",
				Usage: "Postgres URL for player profiles and friends (in-memory when empty)",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "Redis address for rate limiting (disabled when empty)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "ngrok",
				Usage: "Enable ngrok tunnel",
			},
			&cli.StringFlag{
				Name:  "ngrok-auth",
				Usage: "Ngrok auth token (or use NGROK_AUTHTOKEN env var)",
			},
			&cli.StringFlag{
				Name:  "ngrok-domain",
				Usage: "Custom ngrok domain (optional)",
			},
		},
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run HTTP server with API, WebSocket, and MCP endpoint (default)",
				Action: serveAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp"},
				Usage:   "Run MCP stdio server, starting an internal HTTP server if needed",
				Action:  mcpAction,
			},
			{
				Name:   "validate-config",
				Usage:  "Load and validate the configuration, then exit",
				Action: validateConfigAction,
			},
		},
	}
}

// loadConfig merges the config file, environment and flags, then validates.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		cfg.Bind.IP = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Bind.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("database-url") {
		cfg.Database.URL = cmd.String("database-url")
	}
	if cmd.IsSet("redis-addr") {
		cfg.Redis.Addr = cmd.String("redis-addr")
	}
	if cmd.IsSet("debug") {
		cfg.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		cfg.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		cfg.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		cfg.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes text logs to stderr so stdio MCP traffic stays clean.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	}))
}

func validateConfigAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration OK\n")
	fmt.Printf("  Listen: %s\n", cfg.Addr())
	fmt.Printf("  Heartbeat: every %s, timeout %s\n", cfg.Heartbeat.Interval, cfg.Heartbeat.Timeout)
	fmt.Printf("  Room channel capacity: %d\n", cfg.Room.ChannelCapacity)
	fmt.Printf("  Friend store: %s\n", storeKind(cfg))
	fmt.Printf("  Rate limiting: %t\n", cfg.Redis.Addr != "")
	return nil
}

func storeKind(cfg *config.Config) string {
	if cfg.Database.URL != "" {
		return "postgres"
	}
	return "memory"
}

// services holds everything a running server owns.
type services struct {
	room    service.RoomService
	hub     *websocket.Hub
	limiter *ratelimit.Limiter
	friends store.FriendStore
	redis   *redis.Client
}

func (s *services) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	if s.friends != nil {
		s.friends.Close()
	}
}

// initializeServices wires the room registry, liveness tracker, friend store
// and rate limiter into the room service and the WebSocket hub.
func initializeServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	friends, err := newFriendStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create friend store: %w", err)
	}

	svc := &services{friends: friends}
	svc.limiter, svc.redis = newLimiter(ctx, cfg, logger)

	rooms := room.NewRegistry(cfg.Room.ChannelCapacity)
	svc.room = service.NewRoomService(rooms, liveness.NewTracker(), friends, logger.With("component", "rooms"))
	svc.hub = websocket.NewHub(svc.room, websocket.Config{
		HeartbeatInterval: cfg.Heartbeat.Interval,
		StaleThreshold:    cfg.Heartbeat.Timeout,
	}, logger.With("component", "websocket"))

	return svc, nil
}

func newFriendStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.FriendStore, error) {
	if cfg.Database.URL == "" {
		logger.Info("using in-memory friend store")
		return store.NewMemoryStore(), nil
	}

	pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	logger.Info("using postgres friend store")
	return pg, nil
}

// newLimiter connects to Redis when configured. An unreachable Redis is
// logged; the limiter lets requests through while it is down.
func newLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*ratelimit.Limiter, *redis.Client) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, rate limiting will fail open", "addr", cfg.Redis.Addr, "error", err)
	} else {
		logger.Info("rate limiting enabled", "addr", cfg.Redis.Addr, "requests", cfg.RateLimit.Requests, "window", cfg.RateLimit.Window)
	}

	limits := ratelimit.Limits{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}
	return ratelimit.NewLimiter(client, limits, logger.With("component", "ratelimit")), client
}

// mcpHandler serves MCP JSON-RPC messages over plain HTTP POST.
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the API at root and the MCP endpoint at /mcp.
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpClient))
	return mainRouter
}

// newHTTPServer bounds only the header read; upgraded WebSocket connections
// keep whatever deadlines the server leaves on them.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// serveAction starts the HTTP server with REST API, WebSocket hub, and an /mcp
// proxy endpoint. If ngrok is enabled it also provisions a public tunnel.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Debug)
	logger.Info("starting", "app", AppName, "version", Version)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initializeServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	addr := cfg.Addr()
	apiServer := api.NewServer(svc.room, svc.hub, svc.limiter, logger.With("component", "api"))
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", loopbackAddr(cfg)))
	mainRouter := newRouter(apiServer, mcpClient)
	httpServer := newHTTPServer(addr, mainRouter)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		logger.Info("HTTP server listening", "addr", listener.Addr().String())
		logger.Info("endpoints",
			"rest", fmt.Sprintf("http://%s/createroom", addr),
			"websocket", fmt.Sprintf("ws://%s/ws?player_id=<id>&player_name=<name>&room_id=<id>&car_id=<id>&skin_id=<id>&weather_id=<id>&background_id=<id>", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cfg.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg.Ngrok, mainRouter, logger.With("component", "ngrok"))
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serveErr:
		logger.Error("HTTP server failed", "error", err)
		stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := svc.hub.Shutdown(shutdownCtx); err != nil {
		logger.Error("WebSocket hub shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("server stopped")
	return err
}

// loopbackAddr is where in-process clients reach this server.
func loopbackAddr(cfg *config.Config) string {
	host := cfg.Bind.IP
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, fmt.Sprintf("%d", cfg.Bind.Port))
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, cfg config.NgrokConfig, handler http.Handler, logger *slog.Logger) {
	if cfg.AuthToken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	logger.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if cfg.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.Domain))
		logger.Info("using custom ngrok domain", "domain", cfg.Domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.AuthToken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Debug("failed to close ngrok tunnel", "error", err)
		}
	}()

	ngrokURL := tun.URL()
	logger.Info("ngrok tunnel established",
		"url", ngrokURL,
		"websocket", ngrokURL+"/ws",
		"mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error("ngrok server error", "error", err)
	}
	logger.Info("ngrok tunnel closed")
}

// mcpAction runs an MCP stdio server. It reuses a server already listening on
// the configured port; otherwise it starts an internal HTTP API bound to a
// random loopback port and targets that.
func mcpAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Debug)

	externalURL := fmt.Sprintf("http://%s", loopbackAddr(cfg))
	baseURL := externalURL
	logger.Info("checking for external API server", "url", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		logger.Info("external API server found, using it for MCP", "url", externalURL)
	} else {
		if resp != nil {
			resp.Body.Close()
		}
		logger.Info("no external API server found, starting internal HTTP server")

		svc, err := initializeServices(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		httpServer := &http.Server{
			Handler:           api.NewServer(svc.room, svc.hub, svc.limiter, logger.With("component", "api")),
			ReadHeaderTimeout: 15 * time.Second,
		}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("internal HTTP server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
			svc.hub.Shutdown(shutdownCtx)
		}()

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		logger.Info("internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
