package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tkrause/matchday/internal/atd"
	"github.com/tkrause/matchday/internal/handlers"
	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/repository"
	"github.com/tkrause/matchday/internal/services"
	"github.com/tkrause/matchday/internal/websocket"
)

// Config is the typed application configuration, populated once at
// startup and passed by reference. There is no ambient global lookup.
type Config struct {
	Addr               string
	DBPath             string
	ATDPath            string // optional override for the activity type directory
	DebounceWindow     time.Duration
	GenerationDeadline time.Duration
	Generation         services.GenerationOptions
}

// App holds all application dependencies
type App struct {
	log      logger.Logger
	cfg      Config
	handlers *handlers.Handlers
	repo     *repository.Repository
	gen      *services.GeneratorService
}

// New creates and initializes a new application instance
func New(log logger.Logger, cfg Config) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	directory := atd.Default()
	if cfg.ATDPath != "" {
		directory, err = atd.LoadFile(cfg.ATDPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load activity type directory: %w", err)
		}
	}

	// Initialize services
	generator := services.NewGeneratorService(log, repo, cfg.Generation, cfg.GenerationDeadline)
	schedule := services.NewScheduleService(log, directory, generator)
	blocks := services.NewExtraBlockService(log, repo, generator, cfg.DebounceWindow)

	// Initialize WebSocket hub
	hub := websocket.New(log)
	hub.Start()
	generator.SetBroadcaster(hub)

	baseURL := fmt.Sprintf("http://%s%s", preferredLANIP(), cfg.Addr)
	h := handlers.New(log, generator, schedule, blocks, hub, baseURL)

	return &App{
		log:      log,
		cfg:      cfg,
		handlers: h,
		repo:     repo,
		gen:      generator,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Repository exposes the repository for seeding and administration
func (a *App) Repository() *repository.Repository {
	return a.repo
}

// WarmPlans loads persisted activity sets for the given plans into the
// live store so queries work immediately after a restart.
func (a *App) WarmPlans(ctx context.Context, planIDs ...int) {
	for _, planID := range planIDs {
		if err := a.gen.WarmPlan(ctx, planID); err != nil {
			a.log.Warn("Failed to warm plan", "plan", planID, "error", err)
		}
	}
}

// Close releases app resources
func (a *App) Close() error {
	return a.repo.Close()
}

// Run starts the HTTP server
func (a *App) Run() error {
	a.log.Info("Server starting", "addr", a.cfg.Addr)
	return http.ListenAndServe(a.cfg.Addr, a.Router())
}

// preferredLANIP returns the best IPv4 address for LAN access, favoring
// private ranges so the schedule QR codes work for phones on venue
// wifi. Falls back to localhost.
func preferredLANIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		if ip.IsPrivate() {
			return ip.String()
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}
