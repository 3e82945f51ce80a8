package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vntrieu/voidthreat/internal/config"
	"github.com/vntrieu/voidthreat/internal/database"
	"github.com/vntrieu/voidthreat/internal/games"
	"github.com/vntrieu/voidthreat/internal/httpapi"
	"github.com/vntrieu/voidthreat/internal/httpapi/handler"
	"github.com/vntrieu/voidthreat/internal/store"
	"github.com/vntrieu/voidthreat/internal/store/sqlite"
	"github.com/vntrieu/voidthreat/internal/websocket"
)

type eventLog interface {
	games.GameEventStore
	GetGameEvents(ctx context.Context, gameID string) ([]store.GameEvent, error)
}

// backend is one persistence driver wired for the engine and router.
type backend struct {
	games     httpapi.Store
	events    eventLog
	snapshots games.GameStore
	actions   games.NightActionStore
	pinger    handler.Pinger
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer b.close()

	rules := games.LoadConfigFromMap(cfg.RulesOverrides())
	engine := games.NewEngine(b.snapshots, b.events, b.actions, rules)

	hub := websocket.NewHub(nil)
	go hub.Run(ctx)

	router := httpapi.NewRouter(httpapi.Deps{
		Games:       b.games,
		Events:      b.events,
		Engine:      engine,
		Hub:         hub,
		Rules:       engine.Config(),
		TokenSecret: []byte(cfg.TokenSecret),
		RateLimiter: httpapi.DefaultRateLimiter(cfg.RateLimitPerMinute),
		CORSOrigins: cfg.CORSOrigins,
		Pinger:      b.pinger,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("voidthreat backend listening on %s store=%s", cfg.HTTPAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Printf("opened sqlite store path=%s", cfg.SQLitePath)
		return &backend{
			games:     st,
			events:    st,
			snapshots: st,
			actions:   st,
			pinger:    st,
			close:     func() { st.Close() },
		}, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	log.Println("connected to database")

	version, err := database.Migrate(ctx, pool, cfg.MigrationsDir)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Printf("migrations up to date version=%d", version)

	gameStore := store.NewGameStore(pool)
	return &backend{
		games:     gameStore,
		events:    store.NewGameEventStore(pool),
		snapshots: gameStore,
		actions:   store.NewNightActionStore(pool),
		pinger:    pool,
		close:     pool.Close,
	}, nil
}
