// Command vehiclesim starts the vehicle dynamics simulator server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, preset and session directories, debug logging,
// version output, optional ngrok tunneling, and an optional runtime stats
// viewer. Setting SENTRY_DSN enables error reporting.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/vehiclesim/api"
	"github.com/wricardo/mcp-training/vehiclesim/sim/config"
	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/session"
	"github.com/wricardo/mcp-training/vehiclesim/transport/mcp"
	"github.com/wricardo/mcp-training/vehiclesim/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Vehicle Dynamics Simulator"
)

const (
	sessionMaxAge        = 24 * time.Hour
	sessionCleanupPeriod = time.Hour
	filesystemSyncPeriod = 5 * time.Second
)

// Configuration flags control how the server starts and which services are enabled.
var (
	port          = flag.Int("port", 8080, "HTTP server port")
	host          = flag.String("host", "localhost", "HTTP server host")
	presetDir     = flag.String("preset-dir", envOr("PRESET_DIR", "presets"), "Directory containing vehicle presets")
	sessionsDir   = flag.String("sessions-dir", envOr("SESSIONS_DIR", "sessions"), "Directory for persisted vehicle sessions")
	debug         = flag.Bool("debug", false, "Enable debug logging")
	version       = flag.Bool("version", false, "Show version information")
	ngrokEnabled  = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth     = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain   = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
	statsEnabled  = flag.Bool("statsview", false, "Serve runtime statistics charts")
	statsviewAddr = flag.String("statsview-addr", "localhost:18066", "Address of the runtime statistics viewer")
)

// envOr returns the environment variable key, or fallback when it is unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                    # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090         # Run HTTP server on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp          # Run MCP stdio server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -statsview         # Also serve runtime charts on %s\n", os.Args[0], *statsviewAddr)
	}
}

// services bundles everything the server modes share.
type services struct {
	vehicles    service.VehicleService
	sessions    *session.Manager
	presets     *config.Manager
	persistence session.SessionPersistence
	hub         *websocket.Hub
}

// main parses flags and hands the selected mode to run.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logrus.Warnf("Error loading .env file: %v", err)
		}
	} else {
		logrus.Info("Loaded environment variables from .env file")
	}

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	configureLogging(*debug)

	args := flag.Args()
	mode := "server"
	if len(args) > 0 {
		mode = args[0]
	}

	if err := run(mode); err != nil {
		os.Exit(1)
	}
}

// run brings up error reporting, runtime stats and the websocket hub, then
// serves mode. Its deferred cleanup completes before main exits.
func run(mode string) error {
	logrus.Infof("Starting %s v%s (mode: %s)", AppName, Version, mode)

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn, Release: Version}); err != nil {
			logrus.Warnf("Failed to initialize sentry: %v", err)
		} else {
			defer sentry.Flush(5 * time.Second)
			logrus.Info("Sentry error reporting enabled")
		}
	}

	if *statsEnabled {
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(*statsviewAddr))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		logrus.Infof("Runtime statistics: http://%s/debug/statsview", *statsviewAddr)
	}

	hub := websocket.NewHub(logrus.StandardLogger())
	go hub.Run()
	defer hub.Stop()

	return serve(mode, *presetDir, *sessionsDir, hub)
}

// serve initializes the services and runs mode until it stops. Errors are
// reported before they are returned.
func serve(mode, presetDir, sessionsDir string, hub *websocket.Hub) error {
	svc, err := initializeServices(presetDir, sessionsDir, hub)
	if err != nil {
		err = fmt.Errorf("failed to initialize services: %w", err)
		reportError(err, "startup")
		return err
	}
	defer func() {
		if err := svc.sessions.SaveAllSessions(); err != nil {
			reportError(err, "save_all")
		}
	}()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		if err := runStdioMCPWithInternalServer(svc); err != nil {
			reportError(err, "startup")
			return err
		}

	case "server", "http":
		runHTTPServer(svc)

	default:
		err := fmt.Errorf("unknown mode: %s. Use 'server' (default) or 'stdio-mcp'", mode)
		reportError(err, "startup")
		return err
	}
	return nil
}

// configureLogging sets up the standard logrus logger.
func configureLogging(debug bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logrus.SetOutput(os.Stderr)
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		logrus.SetReportCaller(true)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// reportError logs err and forwards it to sentry when a client is configured.
func reportError(err error, operation string) {
	logrus.WithField("operation", operation).Errorf("Operation failed: %v", err)
	if sentry.CurrentHub().Client() == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
	})
	hub.CaptureException(err)
}

// newRouter mounts the REST API at the root and the MCP endpoint at /mcp.
func newRouter(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
func runHTTPServer(svc *services) {
	apiServer := api.NewServer(svc.vehicles, svc.hub, logrus.StandardLogger())

	addr := fmt.Sprintf("%s:%d", *host, *port)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))

	var handler http.Handler = newRouter(apiServer, mcpClient)
	if sentry.CurrentHub().Client() != nil {
		handler = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(handler)
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		logrus.Infof("HTTP server listening on %s", addr)
		logrus.Infof("REST API: http://%s/api", addr)
		logrus.Infof("WebSocket: ws://%s/ws?vehicle=<vehicle_id>", addr)
		logrus.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("HTTP server failed: %v", err)
			stop <- syscall.SIGTERM
		}
	}()

	ngrokShouldRun := *ngrokEnabled
	if !ngrokShouldRun {
		if envEnabled := os.Getenv("NGROK_ENABLED"); envEnabled == "true" || envEnabled == "1" {
			ngrokShouldRun = true
		}
	}

	if ngrokShouldRun {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, handler)
		}()
	}

	go sessionCleanupRoutine(ctx, svc.sessions)
	go filesystemSyncRoutine(ctx, svc.sessions, svc.persistence)

	sig := <-stop
	logrus.Infof("Received signal: %v. Shutting down...", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	logrus.Info("Server stopped")
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx is done.
func runNgrokTunnel(ctx context.Context, handler http.Handler) {
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = os.Getenv("NGROK_AUTHTOKEN")
		if authToken == "" {
			authToken = os.Getenv("NGROK_AUTH_TOKEN")
		}
	}

	if authToken == "" {
		logrus.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	logrus.Info("Starting ngrok tunnel...")

	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		logrus.Infof("Using custom ngrok domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logrus.Errorf("Failed to start ngrok tunnel: %v", err)
		return
	}
	// Serve blocks until the tunnel closes
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logrus.Warnf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	logrus.Infof("Ngrok tunnel established: %s", ngrokURL)
	logrus.Infof("  REST API (ngrok): %s/api", ngrokURL)
	logrus.Infof("  WebSocket (ngrok): %s/ws?vehicle=<vehicle_id>", ngrokURL)
	logrus.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logrus.Errorf("Ngrok server error: %v", err)
	}
	logrus.Info("Ngrok tunnel closed")
}

// initializeServices wires the preset and session managers and the vehicle
// service. Step events are forwarded to hub when it is not nil.
func initializeServices(presetDir, sessionsDir string, hub *websocket.Hub) (*services, error) {
	logger := logrus.StandardLogger()

	presetManager, err := config.NewManager(presetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create preset manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence)
	sessionManager.SetLogger(logger)
	if hub != nil {
		sessionManager.SetStepObserver(hub.BroadcastStep)
	}

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logrus.Warnf("Failed to load persisted sessions: %v", err)
	}

	// the legacy single-car routes drive this vehicle
	if _, err := sessionManager.GetOrCreate(api.LegacyVehicleID, presetManager.GetDefault()); err != nil {
		return nil, fmt.Errorf("failed to create default vehicle: %w", err)
	}

	return &services{
		vehicles:    service.NewVehicleService(sessionManager, presetManager, logger),
		sessions:    sessionManager,
		presets:     presetManager,
		persistence: persistence,
		hub:         hub,
	}, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the retention window.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager) {
	ticker := time.NewTicker(sessionCleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				logrus.Infof("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// filesystemSyncRoutine periodically prunes in-memory sessions whose files
// were deleted from the sessions directory.
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence) {
	if persistence == nil {
		return
	}

	ticker := time.NewTicker(filesystemSyncPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncWithFilesystem(manager, persistence)
		}
	}
}

// syncWithFilesystem runs one pass of the filesystem sync and returns the
// number of sessions pruned.
func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			logrus.WithField("vehicle_id", sess.ID).Info("Pruned session from memory (file deleted)")
		}
	}

	if pruned > 0 {
		logrus.Infof("Filesystem sync: pruned %d orphaned sessions from memory", pruned)
	}
	return pruned
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:<port>; if unavailable, it
// starts an internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(svc *services) error {
	var baseURL string

	externalURL := fmt.Sprintf("http://localhost:%d", *port)
	logrus.Infof("Checking for external API server at %s...", externalURL)

	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(externalURL + "/api/health")
	if err == nil && resp.StatusCode < 500 {
		resp.Body.Close()
		logrus.Infof("External API server found at %s, using it for MCP", externalURL)
		baseURL = externalURL
	} else {
		if resp != nil {
			resp.Body.Close()
		}
		logrus.Info("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalAddr := listener.Addr().String()
		logrus.Infof("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		httpServer := &http.Server{
			Handler: api.NewServer(svc.vehicles, svc.hub, logrus.StandardLogger()),
		}
		defer httpServer.Close()

		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("Internal HTTP server error: %v", err)
			}
		}()

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessionCleanupRoutine(ctx, svc.sessions)

	mcpClient := mcp.NewClient(baseURL)

	if baseURL == externalURL {
		logrus.Info("MCP stdio server ready (using external HTTP server)")
	} else {
		logrus.Info("MCP stdio server ready (using internal HTTP server)")
	}

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		logrus.Errorf("MCP stdio server error: %v", err)
	}
	return nil
}
