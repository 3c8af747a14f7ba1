package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/poke-battle-backend/internal/ws"
)

type Hub interface {
	ws.Sender
	Snapshotter
}

type Deps struct {
	Hub     Hub
	Battles BattleLister // nil when the ledger is off
	WS      ws.Options
	Logger  *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/status", Status(d.Hub))
	r.Get("/healthz", Healthz)
	r.Get("/battles/recent", RecentBattles(d.Battles, d.Logger))
	r.Get("/ws", ws.Handler(d.Hub, d.WS))
	return r
}
