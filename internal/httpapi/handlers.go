package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/poke-battle-backend/internal/history"
	"github.com/DoyleJ11/poke-battle-backend/internal/hub"
)

type Snapshotter interface {
	Snapshot(ctx context.Context) (hub.View, error)
}

type BattleLister interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

type statusResponse struct {
	Status  string `json:"status"`
	Waiting int    `json:"waiting"`
	Battles int    `json:"battles"`
	Players int    `json:"players"`
}

func Status(h Snapshotter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		v, err := h.Snapshot(ctx)
		if err != nil {
			http.Error(w, "hub unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{
			Status:  "Server is running",
			Waiting: len(v.Waiting),
			Battles: len(v.Rooms),
			Players: v.Players,
		})
	}
}

// RecentBattles serves the ledger, newest first. A nil lister means the
// ledger is disabled and the list is always empty.
func RecentBattles(l BattleLister, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if l == nil {
			writeJSON(w, http.StatusOK, []history.Record{})
			return
		}
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		recs, err := l.Recent(r.Context(), limit)
		if err != nil {
			logger.Error("list battles", zap.Error(err))
			http.Error(w, "failed to list battles", http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []history.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
