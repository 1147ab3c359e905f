package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"saas-subscription-api/internal/config"
	"saas-subscription-api/internal/domain"
	"saas-subscription-api/internal/domain/model"
	"saas-subscription-api/internal/domain/ports/adapter"
	"saas-subscription-api/internal/domain/ports/repository"
	"saas-subscription-api/internal/infra/logging"
	red "saas-subscription-api/internal/infra/redis"
	"saas-subscription-api/internal/usecase"
)

// Server wires the HTTP API onto the use cases.
type Server struct {
	cfg     *config.Config
	userUC  usecase.UserUseCase
	subUC   usecase.SubscriptionUseCase
	catalog repository.PlanRepository
	gateway adapter.PaymentGateway
	auth    *AuthManager
	limiter *red.RateLimiter
	locker  red.Locker
	log     *zerolog.Logger
}

func NewServer(
	cfg *config.Config,
	userUC usecase.UserUseCase,
	subUC usecase.SubscriptionUseCase,
	plans repository.PlanRepository,
	gateway adapter.PaymentGateway,
	limiter *red.RateLimiter,
	locker red.Locker,
	logger *zerolog.Logger,
) *Server {
	srvLog := logger.With().Str("component", "APIServer").Logger()
	return &Server{
		cfg:     cfg,
		userUC:  userUC,
		subUC:   subUC,
		catalog: plans,
		gateway: gateway,
		auth:    NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		limiter: limiter,
		locker:  locker,
		log:     &srvLog,
	}
}

// Router builds the chi mux with all routes registered.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle(s.cfg.Server.MetricsPath, promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Get("/plans", s.handleListPlans)

		r.Post("/webhooks/paystack", s.handlePaystackWebhook)

		// Poll path: the gateway redirects here after checkout, no session.
		r.Get("/subscriptions/verify", s.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAuth)
			r.Get("/users/me", s.handleMe)
			r.Patch("/users/me", s.handleUpdateMe)
			r.Post("/subscriptions/subscribe/{planID}", s.handleSubscribe)
			r.Get("/subscriptions/status", s.handleStatus)
			r.Get("/subscriptions/history", s.handleHistory)
			r.Post("/subscriptions/cancel", s.handleCancel)
		})

		// End-to-end testing without a live gateway. Never registered outside
		// dev mode.
		if s.cfg.Runtime.Dev {
			r.Post("/subscriptions/test-verify/{reference}", s.handleTestVerify)
		}
	})
	return r
}

// ----- auth handlers -----

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := s.userUC.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusBadRequest, "email already registered")
		case errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusBadRequest, "email and password are required")
		default:
			s.log.Error().Err(err).Msg("register failed")
			writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, userResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), red.LoginKey(req.Email), 10, time.Minute)
		if err == nil && !ok {
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
	}
	user, err := s.userUC.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "incorrect email or password")
		return
	}
	token, err := s.auth.Mint(user.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("token mint failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.userUC.GetByID(r.Context(), userIDFrom(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

type updateMeRequest struct {
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := s.userUC.UpdateProfile(r.Context(), userIDFrom(r), req.FullName, req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}
	writeJSON(w, http.StatusOK, userResponse(user))
}

// ----- plan/subscription handlers -----

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.catalog.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "planID")
	res, err := s.subUC.Initiate(r.Context(), userIDFrom(r), planID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPlanNotFound):
			writeError(w, http.StatusNotFound, "plan not found")
		case errors.Is(err, domain.ErrPaymentInit):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			s.log.Error().Err(err).Str("plan", planID).Msg("subscribe failed")
			writeError(w, http.StatusInternalServerError, "subscribe failed")
		}
		return
	}
	if res.Reference == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message": "subscribed to free plan",
			"plan":    res.Plan,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":           "payment initialized, complete checkout at the URL below",
		"authorization_url": res.AuthorizationURL,
		"reference":         res.Reference,
		"plan":              res.Plan.ID,
		"amount":            res.Plan.Price,
		"valid_until":       res.ValidUntil,
	})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}
	out, err := s.reconcileSerialized(r, reference)
	if err != nil {
		s.writeReconcileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse(out))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, err := s.subUC.Status(r.Context(), userIDFrom(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	now := time.Now()
	resp := map[string]interface{}{
		"user_id":           user.ID,
		"email":             user.Email,
		"subscription_tier": user.SubscriptionTier,
		"is_active":         user.IsSubscriptionActive(now),
		"valid_from":        user.SubscriptionStartDate,
		"valid_until":       user.SubscriptionEndDate,
		"auto_renew":        user.AutoRenew,
	}
	if user.SubscriptionEndDate != nil && user.SubscriptionTier != model.TierFree {
		resp["days_remaining"] = int(user.SubscriptionEndDate.Sub(now).Hours() / 24)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := s.subUC.History(r.Context(), userIDFrom(r))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	items := make([]map[string]interface{}, 0, len(txs))
	for _, t := range txs {
		items = append(items, map[string]interface{}{
			"id":         t.ID,
			"reference":  t.Reference,
			"amount":     t.Amount,
			"currency":   t.Currency,
			"status":     t.Status,
			"plan_id":    t.PlanID,
			"paid_at":    t.PaidAt,
			"created_at": t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": items})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	user, err := s.subUC.Cancel(r.Context(), userIDFrom(r))
	if err != nil {
		if errors.Is(err, domain.ErrNoPaidSubscription) {
			writeError(w, http.StatusBadRequest, "no active paid subscription")
			return
		}
		writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "auto-renew cancelled, tier drops to free at the end of the billing period",
		"current_plan": user.SubscriptionTier,
		"valid_until":  user.SubscriptionEndDate,
	})
}

func (s *Server) handleTestVerify(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	planID := r.URL.Query().Get("plan_id")
	if planID == "" {
		planID = string(model.TierBasic)
	}
	out, err := s.subUC.ReconcileManual(r.Context(), reference, planID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidReference) {
			writeError(w, http.StatusBadRequest, "invalid reference")
			return
		}
		s.writeReconcileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcomeResponse(out))
}

// requestLogger carries the chi request id into the logging context and emits
// one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.With(ctx, s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

// reconcileSerialized wraps Reconcile in a short per-reference lock when a
// locker is configured, so racing webhook and poll deliveries do not both pay
// for a gateway round trip. The ledger's conditional update stays the source
// of truth either way.
func (s *Server) reconcileSerialized(r *http.Request, reference string) (*usecase.ReconcileOutcome, error) {
	ctx := logging.WithReference(r.Context(), reference)
	logging.With(ctx, s.log).Debug().Msg("reconciliation requested")
	if s.locker != nil {
		if token, err := s.locker.TryLock(ctx, red.ReferenceLockKey(reference), 30*time.Second); err == nil {
			defer func() { _ = s.locker.Unlock(ctx, red.ReferenceLockKey(reference), token) }()
		}
	}
	return s.subUC.Reconcile(ctx, reference)
}

func (s *Server) writeReconcileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, domain.ErrVerificationFailed):
		writeError(w, http.StatusBadGateway, "verification failed")
	default:
		s.log.Error().Err(err).Msg("reconcile failed")
		writeError(w, http.StatusInternalServerError, "reconcile failed")
	}
}

// ----- response helpers -----

func outcomeResponse(out *usecase.ReconcileOutcome) map[string]interface{} {
	resp := map[string]interface{}{
		"message":   out.Message,
		"reference": out.Reference,
		"status":    out.Status,
		"plan":      out.PlanID,
	}
	if out.Activated {
		resp["valid_from"] = out.StartDate
		resp["valid_until"] = out.EndDate
	}
	return resp
}

func userResponse(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"id":                u.ID,
		"email":             u.Email,
		"full_name":         u.FullName,
		"subscription_tier": u.SubscriptionTier,
		"is_active":         u.IsActive,
		"created_at":        u.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
