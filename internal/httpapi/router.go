package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/swaggo/http-swagger"
	"github.com/vntrieu/voidthreat/internal/games"
	"github.com/vntrieu/voidthreat/internal/httpapi/handler"
	"github.com/vntrieu/voidthreat/internal/ratelimit"
	"github.com/vntrieu/voidthreat/internal/websocket"

	_ "github.com/vntrieu/voidthreat/docs" // swagger spec
)

// Store is everything the HTTP and socket layers read from persistence.
type Store interface {
	handler.GameStore
	websocket.GameLookup
}

// Deps are the collaborators of the router.
type Deps struct {
	Games  Store
	// Events is optional; without it the event log route answers 404.
	Events handler.EventLog
	Engine handler.MoveEngine
	// Hub must be running; the router installs its event handler.
	Hub *websocket.Hub
	// Rules drive the role endpoints.
	Rules games.RulesConfig
	// TokenSecret signs player tokens; if empty, create/join omit the token and authenticated routes reject.
	TokenSecret []byte
	// RateLimiter is optional: if nil, no rate limiting is applied; otherwise create, join and moves are limited.
	RateLimiter ratelimit.Limiter
	// CORSOrigins defaults to "*".
	CORSOrigins []string
	// Pinger enables GET /readyz.
	Pinger handler.Pinger
}

// NewRouter builds the root HTTP router.
//
// @title            Void Threat API
// @version          1.0
// @description      Lobby, moves and role balance for Void Threat games.
// @BasePath         /
// @SecurityDefinitions.apikey  BearerAuth
// @in               header
// @name             Authorization
func NewRouter(deps Deps) http.Handler {
	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = &ratelimit.Noop{}
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", handler.Healthz)
	if deps.Pinger != nil {
		r.Get("/readyz", handler.Readyz(deps.Pinger))
	}

	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	var publisher handler.Publisher
	if deps.Hub != nil {
		eventHandler := websocket.NewEventHandler(deps.Hub, deps.Engine, rateLimiter)
		deps.Hub.SetEventHandler(eventHandler)
		publisher = eventHandler

		wsHandler := websocket.NewWSHandler(deps.Hub, deps.Games, deps.TokenSecret)
		r.Get("/ws/games/{code}", wsHandler.HandleGameWebSocket)
	}

	rolesHandler := handler.NewRolesHandler(deps.Rules)
	r.Route("/api/roles", func(r chi.Router) {
		r.Use(LimitRequestBody(DefaultMaxBodyBytes))
		r.Get("/", rolesHandler.ListRoles)
		r.Post("/balance", rolesHandler.Balance)
		r.Get("/standard", rolesHandler.StandardRoles)
	})

	rateLimitByIP := RateLimitMiddleware(rateLimiter, RateLimitKeyByIP)
	rateLimitByPlayer := RateLimitMiddleware(rateLimiter, RateLimitKeyByPlayer)
	requireToken := RequireGameToken(deps.TokenSecret)

	gameHandler := handler.NewGameHandler(deps.Games, deps.Events, deps.Engine, publisher, deps.TokenSecret)
	r.Route("/api/games", func(r chi.Router) {
		r.Use(LimitRequestBody(DefaultMaxBodyBytes))
		r.With(rateLimitByIP).Post("/", gameHandler.CreateGame)
		r.Get("/{code}", gameHandler.GetGame)
		r.With(rateLimitByIP).Post("/{code}/join", gameHandler.JoinGame)
		r.With(requireToken).Get("/{code}/state", gameHandler.GetState)
		r.With(requireToken).Get("/{code}/events", gameHandler.ListEvents)
		r.With(requireToken, rateLimitByPlayer).Post("/{code}/moves", gameHandler.Move)
	})

	return r
}

// DefaultRateLimiter returns an in-memory rate limiter: perMinute requests per key.
// Pass nil to NewRouter to disable. For multi-instance, replace with a shared limiter.
func DefaultRateLimiter(perMinute int) ratelimit.Limiter {
	if perMinute <= 0 {
		return &ratelimit.Noop{}
	}
	return ratelimit.NewInMemory(perMinute, time.Minute)
}
