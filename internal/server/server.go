package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/iwvelando/dealership-quote/internal/auth"
	"github.com/iwvelando/dealership-quote/internal/catalog"
	"github.com/iwvelando/dealership-quote/internal/metrics"
	"github.com/iwvelando/dealership-quote/internal/optimizer"
	"github.com/iwvelando/dealership-quote/internal/quote"
	"github.com/iwvelando/dealership-quote/pkg/constants"
	"github.com/iwvelando/dealership-quote/pkg/loans"
	"github.com/iwvelando/dealership-quote/pkg/pricing"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Deps are the collaborators of the HTTP handler. A nil Auth disables the
// admin API with 503 responses.
type Deps struct {
	Service        *quote.Service
	Auth           *auth.Authenticator
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	Version        string
	MaxBodyBytes   int64
	AllowedOrigins []string
}

type handler struct {
	svc         *quote.Service
	auth        *auth.Authenticator
	logger      *zap.Logger
	maxBodySize int64
	version     string
}

// NewHandler constructs the HTTP handler that serves the quote and admin API.
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxBodySize := deps.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	trimmedVersion := strings.TrimSpace(deps.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		svc:         deps.Service,
		auth:        deps.Auth,
		logger:      logger,
		maxBodySize: maxBodySize,
		version:     trimmedVersion,
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "not found")
	})
	// Subrouters fall back to 404 on a method mismatch unless they carry
	// their own handler.
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})
	router.MethodNotAllowedHandler = methodNotAllowed
	router.Use(deps.Metrics.Middleware)

	router.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = methodNotAllowed
	api.HandleFunc("/version", h.handleVersion).Methods(http.MethodGet)
	api.HandleFunc("/models", h.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/models/{model}/quote", h.handleModelQuote).Methods(http.MethodGet)
	api.HandleFunc("/registration", h.handleRegistration).Methods(http.MethodPost)
	api.HandleFunc("/loan", h.handleLoan).Methods(http.MethodPost)
	api.HandleFunc("/affordability", h.handleAffordability).Methods(http.MethodPost)
	api.HandleFunc("/leads", h.handleLead).Methods(http.MethodPost)
	api.HandleFunc("/admin/login", h.handleLogin).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.MethodNotAllowedHandler = methodNotAllowed
	admin.Use(h.requireAdmin)
	admin.HandleFunc("/prices", h.handleUpsertPrice).Methods(http.MethodPut)
	admin.HandleFunc("/prices/{model}/{variant}", h.handleDeletePrice).Methods(http.MethodDelete)
	admin.HandleFunc("/fees", h.handleGetFees).Methods(http.MethodGet)
	admin.HandleFunc("/fees", h.handleSaveFees).Methods(http.MethodPut)
	admin.HandleFunc("/leads", h.handleListLeads).Methods(http.MethodGet)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         600,
	})
	return c.Handler(router)
}

// New wraps handler in an http.Server configured from opts.
func New(opts Options, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              opts.Address,
		Handler:           handler,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
	}
}

func (h *handler) requireAdmin(next http.Handler) http.Handler {
	if h.auth == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.writeError(w, http.StatusServiceUnavailable, "admin API is disabled")
		})
	}
	return h.auth.Middleware(next)
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.svc.ListModels(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "server.handleModels")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"models": models})
}

func (h *handler) handleModelQuote(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.ModelQuote(r.Context(), mux.Vars(r)["model"])
	if err != nil {
		h.respondServiceError(w, err, "server.handleModelQuote")
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

type registrationRequest struct {
	Variant   string `json:"variant"`
	BasePrice int64  `json:"basePrice"`
}

type registrationResponse struct {
	Variant   string                        `json:"variant"`
	BasePrice int64                         `json:"basePrice"`
	Fees      pricing.RegistrationFeeResult `json:"fees"`
}

func (h *handler) handleRegistration(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if !h.decodeJSON(w, r, &req, "server.handleRegistration") {
		return
	}
	fees, err := h.svc.Registration(r.Context(), req.Variant, req.BasePrice)
	if err != nil {
		h.respondServiceError(w, err, "server.handleRegistration")
		return
	}
	h.writeJSON(w, http.StatusOK, registrationResponse{
		Variant:   strings.ToLower(strings.TrimSpace(req.Variant)),
		BasePrice: req.BasePrice,
		Fees:      fees,
	})
}

// loanRequest accepts either a principal or a price with a down payment share.
type loanRequest struct {
	loans.LoanInput
	Price              int64   `json:"price"`
	DownPaymentPercent float64 `json:"downPaymentPercent"`
	Schedule           bool    `json:"schedule"`
	StartMonth         string  `json:"startMonth"`
}

type loanResponse struct {
	Principal int64 `json:"principal"`
	loans.LoanResult
	Schedule []loans.Installment `json:"schedule,omitempty"`
}

func (h *handler) handleLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !h.decodeJSON(w, r, &req, "server.handleLoan") {
		return
	}

	input := req.LoanInput
	if input.Principal == 0 && req.Price > 0 {
		principal, err := h.svc.FinancedPrincipal(req.Price, req.DownPaymentPercent)
		if err != nil {
			h.respondServiceError(w, err, "server.handleLoan")
			return
		}
		input.Principal = principal
	}

	result, err := h.svc.Loan(input)
	if err != nil {
		h.respondServiceError(w, err, "server.handleLoan")
		return
	}

	resp := loanResponse{Principal: input.Principal, LoanResult: result}
	if req.Schedule {
		resp.Schedule, err = h.svc.Schedule(input, req.StartMonth)
		if err != nil {
			h.respondServiceError(w, err, "server.handleLoan")
			return
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleAffordability(w http.ResponseWriter, r *http.Request) {
	var req optimizer.Request
	if !h.decodeJSON(w, r, &req, "server.handleAffordability") {
		return
	}
	result, err := h.svc.Affordability(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err, "server.handleAffordability")
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleLead(w http.ResponseWriter, r *http.Request) {
	var req quote.LeadRequest
	if !h.decodeJSON(w, r, &req, "server.handleLead") {
		return
	}
	lead, err := h.svc.SubmitLead(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err, "server.handleLead")
		return
	}
	h.writeJSON(w, http.StatusCreated, lead)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		h.writeError(w, http.StatusServiceUnavailable, "admin API is disabled")
		return
	}
	var req loginRequest
	if !h.decodeJSON(w, r, &req, "server.handleLogin") {
		return
	}
	token, expires, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.respondServiceError(w, err, "server.handleLogin")
		return
	}
	h.writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

func (h *handler) handleUpsertPrice(w http.ResponseWriter, r *http.Request) {
	var price pricing.VehiclePrice
	if !h.decodeJSON(w, r, &price, "server.handleUpsertPrice") {
		return
	}
	if err := h.svc.UpsertPrice(r.Context(), price); err != nil {
		h.respondServiceError(w, err, "server.handleUpsertPrice")
		return
	}
	h.logger.Info("price row saved",
		zap.String("op", "server.handleUpsertPrice"),
		zap.String("model", price.CarModel),
		zap.String("variant", string(price.Variant)),
	)
	h.writeJSON(w, http.StatusOK, price)
}

func (h *handler) handleDeletePrice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.DeletePrice(r.Context(), vars["model"], vars["variant"]); err != nil {
		h.respondServiceError(w, err, "server.handleDeletePrice")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleGetFees(w http.ResponseWriter, r *http.Request) {
	fees, err := h.svc.Fees(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "server.handleGetFees")
		return
	}
	h.writeJSON(w, http.StatusOK, fees)
}

func (h *handler) handleSaveFees(w http.ResponseWriter, r *http.Request) {
	var fees pricing.RegistrationFees
	if !h.decodeJSON(w, r, &fees, "server.handleSaveFees") {
		return
	}
	if err := h.svc.SaveFees(r.Context(), fees); err != nil {
		h.respondServiceError(w, err, "server.handleSaveFees")
		return
	}
	h.writeJSON(w, http.StatusOK, fees)
}

func (h *handler) handleListLeads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw), "server.handleListLeads")
			return
		}
		limit = n
	}
	leads, err := h.svc.ListLeads(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err, "server.handleListLeads")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]catalog.Lead{"leads": leads})
}

// decodeJSON reads a size-capped JSON body into dst. It writes the error
// response itself and returns false when decoding fails.
func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBodySize), op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

// respondServiceError maps service errors onto status codes. Unexpected
// errors are logged in full and answered with a generic message.
func (h *handler) respondServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case quote.IsInvalidInput(err):
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
	case errors.Is(err, catalog.ErrNotFound):
		h.respondErrorWithOp(w, http.StatusNotFound, err.Error(), op)
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.respondErrorWithOp(w, http.StatusUnauthorized, err.Error(), op)
	case errors.Is(err, quote.ErrFeesNotConfigured):
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, err.Error(), op)
	default:
		h.logger.Error("request failed",
			zap.String("op", op),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Info("request rejected",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
	h.writeError(w, status, msg)
}

func (h *handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
