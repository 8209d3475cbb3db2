package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/config"
	"github.com/drongunkam-dotcom/arb-bot/internal/detector"
	"github.com/drongunkam-dotcom/arb-bot/internal/feed"
	"github.com/drongunkam-dotcom/arb-bot/internal/ledger"
	"github.com/drongunkam-dotcom/arb-bot/internal/safety"
	"github.com/drongunkam-dotcom/arb-bot/internal/state"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

// Handlers holds the read models the API serves from. Everything here is
// already concurrency-safe; handlers never take locks of their own.
type Handlers struct {
	State   *state.State
	Wallet  safety.BalanceReader // nil in simulation mode
	Book    *detector.Book
	Ledger  *ledger.Ledger
	Bus     *feed.Bus
	Config  config.Public
	// NativeQuotePrice converts the native balance to quote units on
	// /api/balance; zero leaves the field out.
	NativeQuotePrice float64
	Version          string
	Log              *zap.Logger
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
	})
}

func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	snap := h.State.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":               snap.Status,
		"simulation_mode":      snap.SimulationMode,
		"consecutive_failures": snap.ConsecutiveFailures,
		"uptime_seconds":       snap.UptimeSeconds,
		"version":              h.Version,
	})
}

func (h *Handlers) Balance(w http.ResponseWriter, r *http.Request) {
	if h.Wallet == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"balance":    0.0,
			"simulation": true,
		})
		return
	}
	bal, err := h.Wallet.Balance(r.Context())
	if err != nil {
		h.Log.Warn("balance read failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "balance read failed")
		return
	}
	out := map[string]interface{}{
		"balance":    bal,
		"simulation": false,
	}
	if h.NativeQuotePrice > 0 {
		out["balance_quote"] = bal * h.NativeQuotePrice
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) Opportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	minProfit := 0.0
	if v := q.Get("min_profit"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			minProfit = f
		}
	}
	opps := h.Book.List(limit, minProfit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"opportunities": opps,
		"count":         len(opps),
		"updated_at":    h.Book.UpdatedAt(),
	})
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	f := parseHistoryFilter(r)
	records, total := h.Ledger.History(f)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"trades": records,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

func (h *Handlers) Metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Ledger.Metrics())
}

func (h *Handlers) ConfigHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Config)
}

func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.State.Start(); err != nil {
		if errors.Is(err, state.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "bot already running")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.publishStatus(r.Context())
	h.Log.Info("bot started via api")
	writeJSON(w, http.StatusOK, map[string]string{"status": string(types.StatusRunning)})
}

func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	h.State.Stop()
	h.publishStatus(r.Context())
	h.Log.Info("bot stopped via api")
	writeJSON(w, http.StatusOK, map[string]string{"status": string(h.State.Status())})
}

func (h *Handlers) publishStatus(ctx context.Context) {
	if h.Bus != nil {
		h.Bus.Publish(ctx, feed.EventStatus, h.State.Snapshot())
	}
}

func parseHistoryFilter(r *http.Request) ledger.Filter {
	q := r.URL.Query()

	f := ledger.Filter{Limit: 50}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}
	if v := q.Get("status"); v != "" {
		f.Status = types.TradeStatus(v)
	}
	if v := q.Get("from_venue"); v != "" {
		f.FromVenue = types.VenueID(v)
	}
	return f
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
