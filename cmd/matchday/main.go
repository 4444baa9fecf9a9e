package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tkrause/matchday/internal/app"
	"github.com/tkrause/matchday/internal/logger"
	"github.com/tkrause/matchday/internal/services"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "matchday.db", "Path to SQLite database")
	atdPath := flag.String("atd", "", "Optional JSON file overriding the activity type directory")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	httpLog := flag.Bool("http-log", false, "Log HTTP requests")
	debounce := flag.Duration("debounce", services.DefaultDebounceWindow, "Coalescing window for extra block edits before regeneration")
	deadline := flag.Duration("generation-deadline", 30*time.Second, "Deadline for a single generation pass")
	flag.Parse()

	log := logger.NewWithLevel(logger.ParseLevel(*logLevel))
	if *httpLog {
		log.EnableHTTPLogging()
	}

	a, err := app.New(log, app.Config{
		Addr:               *addr,
		DBPath:             *dbPath,
		ATDPath:            *atdPath,
		DebounceWindow:     *debounce,
		GenerationDeadline: *deadline,
		Generation:         services.DefaultGenerationOptions(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	warmPersistedPlans(a)

	if err := a.Run(); err != nil {
		log.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

// warmPersistedPlans loads previously generated schedules so displays
// keep working across restarts without a regeneration pass.
func warmPersistedPlans(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ids, err := a.Repository().ListPlanIDs(ctx)
	if err != nil {
		return
	}
	a.WarmPlans(ctx, ids...)
}
