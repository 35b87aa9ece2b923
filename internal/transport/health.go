package transport

import (
	"database/sql"
	"net/http"
	"os"

	"ge-copilot/internal/store"
)

type healthResponse struct {
	OK                    bool  `json:"ok"`
	LastPriceRefreshUnix  int64 `json:"last_price_refresh_unix"`
	DB                    bool  `json:"db"`
	Log                   bool  `json:"log"`
	UptimeSeconds         int64 `json:"uptime_seconds"`
	Ready                 bool  `json:"ready"`
	LastStatusTS          int64 `json:"last_status_ts"`
	RecentRecommendations int   `json:"recent_recommendations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.prices.Snapshot()
	dbOK := s.st.SqlDB().Ping() == nil
	_, logErr := os.Stat(s.cfg.LogPath)
	logOK := logErr == nil

	var recentCount int
	_ = s.st.WithRead(func(db *sql.DB) error {
		recent, err := store.RecentRecommendations(db, 20)
		if err != nil {
			return err
		}
		recentCount = len(recent)
		return nil
	})

	writeJSON(w, healthResponse{
		OK:                    dbOK,
		LastPriceRefreshUnix:  snap.LastRefreshTS,
		DB:                    dbOK,
		Log:                   logOK,
		UptimeSeconds:         nowUnix() - s.startedAt,
		Ready:                 snap.LastRefreshTS > 0,
		LastStatusTS:          s.engine.LastStatusTS(),
		RecentRecommendations: recentCount,
	})
}
