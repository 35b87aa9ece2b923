// Package transport is the HTTP surface of the copilot: the suggestion
// endpoint, the price lookup endpoint, and the profit-tracking endpoints
// used by the client's P&L tab.
package transport

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"ge-copilot/internal/config"
	"ge-copilot/internal/logger"
	"ge-copilot/internal/priceapi"
	"ge-copilot/internal/profittrack"
	"ge-copilot/internal/rectrack"
	"ge-copilot/internal/store"
	"ge-copilot/internal/suggest"
	"ge-copilot/internal/wire"
)

// Server wires the suggestion engine, price cache, and profit ledger to
// HTTP handlers. PriceCache, the store, and the profit ledger are
// process-wide singletons; each handler borrows them and every mutation
// happens under their own internal lock.
type Server struct {
	cfg     *config.Config
	st      *store.Store
	engine  *suggest.Engine
	prices  *priceapi.PriceCache
	tracker *rectrack.Tracker
	ledger  *profittrack.Ledger

	startedAt int64
}

// New builds a Server from its collaborators.
func New(cfg *config.Config, st *store.Store, engine *suggest.Engine, prices *priceapi.PriceCache, tracker *rectrack.Tracker, ledger *profittrack.Ledger, now int64) *Server {
	return &Server{cfg: cfg, st: st, engine: engine, prices: prices, tracker: tracker, ledger: ledger, startedAt: now}
}

// Handler returns the HTTP handler with every route registered, wrapped in
// the panic-recovery boundary required by the error handling design.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /suggestion", s.handleSuggestion)
	mux.HandleFunc("GET /prices", s.handlePrices)
	mux.HandleFunc("POST /prices", s.handlePrices)
	mux.HandleFunc("GET /profit-tracking/rs-account-names", s.handleAccountNames)
	mux.HandleFunc("POST /profit-tracking/account-client-transactions", s.handleAccountClientTransactions)
	mux.HandleFunc("POST /profit-tracking/client-transactions", s.handlePostClientTransactions)
	mux.HandleFunc("GET /profit-tracking/client-transactions", s.handleGetClientTransactions)
	mux.HandleFunc("POST /profit-tracking/client-flips-delta", s.handleClientFlipsDelta)
	mux.HandleFunc("POST /profit-tracking/orphan-transaction", s.handleOrphanTransaction)
	mux.HandleFunc("POST /profit-tracking/delete-transaction", s.handleDeleteTransaction)
	mux.HandleFunc("POST /profit-tracking/visualize-flip", s.handleVisualizeFlip)
	mux.HandleFunc("GET /health", s.handleHealth)
	return recoverMiddleware(mux)
}

// recoverMiddleware catches any panic in the request path, logs it with a
// request id, and responds with a wait action carrying a generic
// server-issue message on /suggestion (a JSON error on other routes), per
// §7's internal-exception recovery regime.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				reqID := requestID()
				logger.Error("transport", "panic on "+r.Method+" "+r.URL.Path+" [req="+reqID+"]: "+panicMessage(rec))
				if r.URL.Path == "/suggestion" {
					msg := "server issue — check log"
					writeAction(w, r, wire.Action{Type: "wait", CommandID: wire.CommandWait, Note: msg, Message: msg})
					return
				}
				writeError(w, http.StatusInternalServerError, "server issue — check log")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func panicMessage(rec any) string {
	if err, ok := rec.(error); ok {
		return err.Error()
	}
	return "unknown panic"
}

func requestID() string {
	return time.Now().UTC().Format("20060102T150405.000000000")
}

func wantsMsgpack(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/x-msgpack")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func nowUnix() int64 {
	return time.Now().Unix()
}
