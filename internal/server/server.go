package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/famquest/internal/config"
	"github.com/dukerupert/famquest/internal/handler"
	"github.com/dukerupert/famquest/internal/middleware"
	"github.com/dukerupert/famquest/internal/points"
	"github.com/dukerupert/famquest/internal/store"
	ws "github.com/dukerupert/famquest/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	familyH       *handler.FamilyHandler
	familyMemberH *handler.FamilyMemberHandler
	pointsH       *handler.PointsHandler
	rewardH       *handler.RewardHandler
	redemptionH   *handler.RedemptionHandler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, cfg config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	familyMemberStore := store.NewFamilyMemberStore(db)
	ledgerStore := store.NewLedgerStore(db)
	rewardStore := store.NewRewardStore(db)
	redemptionStore := store.NewRedemptionStore(db)

	engine := points.NewEngine(
		points.NewSQLUnitOfWork(db, cfg.Retry.MaxRetries, cfg.Retry.BaseDelay),
		redemptionStore,
		hub,
		logger.With("component", "redemption"),
	)
	aggregator := points.NewAggregator(ledgerStore, familyMemberStore, engine, hub, logger.With("component", "points"))

	return &Server{
		db:            db,
		hub:           hub,
		familyH:       handler.NewFamilyHandler(familyStore, logger.With("component", "family")),
		familyMemberH: handler.NewFamilyMemberHandler(familyMemberStore, hub, logger.With("component", "family_member")),
		pointsH:       handler.NewPointsHandler(aggregator, familyMemberStore, logger.With("component", "points")),
		rewardH:       handler.NewRewardHandler(rewardStore, engine, hub, logger.With("component", "reward")),
		redemptionH:   handler.NewRedemptionHandler(engine),
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	mux.HandleFunc("POST /api/families", s.rateLimited(s.familyH.Create))
	mux.HandleFunc("GET /api/families/{family_id}", s.familyH.Get)

	// Family member routes
	mux.HandleFunc("GET /api/families/{family_id}/members", s.familyMemberH.List)
	mux.HandleFunc("POST /api/families/{family_id}/members", s.rateLimited(s.familyMemberH.Create))
	mux.HandleFunc("PUT /api/families/{family_id}/members/{id}", s.rateLimited(s.familyMemberH.Update))
	mux.HandleFunc("DELETE /api/families/{family_id}/members/{id}", s.rateLimited(s.familyMemberH.Delete))

	// PIN routes
	mux.HandleFunc("POST /api/families/{family_id}/members/{id}/pin", s.rateLimited(s.familyMemberH.SetPIN))
	mux.HandleFunc("DELETE /api/families/{family_id}/members/{id}/pin", s.rateLimited(s.familyMemberH.ClearPIN))
	mux.HandleFunc("POST /api/families/{family_id}/members/{id}/pin/verify", s.rateLimited(s.familyMemberH.VerifyPIN))

	// Points routes
	mux.HandleFunc("GET /api/families/{family_id}/points", s.pointsH.FamilyTotal)
	mux.HandleFunc("GET /api/families/{family_id}/leaderboard", s.pointsH.Leaderboard)
	mux.HandleFunc("GET /api/families/{family_id}/members/{id}/points", s.pointsH.MemberPoints)
	mux.HandleFunc("POST /api/families/{family_id}/members/{id}/points", s.rateLimited(s.pointsH.Award))
	mux.HandleFunc("GET /api/families/{family_id}/members/{id}/ledger", s.pointsH.History)

	// Reward catalog and redemption routes
	mux.HandleFunc("GET /api/families/{family_id}/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/families/{family_id}/rewards", s.rateLimited(s.rewardH.Create))
	mux.HandleFunc("PUT /api/families/{family_id}/rewards/{id}", s.rateLimited(s.rewardH.Update))
	mux.HandleFunc("DELETE /api/families/{family_id}/rewards/{id}", s.rateLimited(s.rewardH.Delete))
	mux.HandleFunc("POST /api/families/{family_id}/rewards/{id}/redeem", s.rateLimited(s.rewardH.Redeem))
	mux.HandleFunc("GET /api/families/{family_id}/redemptions", s.redemptionH.List)
	mux.HandleFunc("POST /api/families/{family_id}/redemptions/{id}/use", s.rateLimited(s.redemptionH.Use))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}
