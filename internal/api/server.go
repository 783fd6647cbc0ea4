package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mintage/internal/config"
	"mintage/internal/economy"
	"mintage/internal/money"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const accountContextKey contextKey = "account"

type Server struct {
	cfg config.APIConfig
	log *slog.Logger
	eco *economy.Service
	mux *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, ecoSvc *economy.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg: cfg,
		log: logger,
		eco: ecoSvc,
		mux: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", s.handleCreateAccount)
		r.Get("/ledger/verify", s.handleLedgerVerify)
		r.Get("/stats", s.handleStats)
		r.Get("/market/listings", s.handleListingsList)
		r.Get("/accounts/{id}/history", s.handleHistory)
		r.Get("/companies/{id}", s.handleGetCompany)

		r.Group(func(r chi.Router) {
			r.Use(s.accountMiddleware)
			r.Post("/transfers", s.handleTransfer)
			r.Post("/work", s.handleWork)
			r.Post("/companies", s.handleCreateCompany)
			r.Post("/companies/{id}/hire", s.handleHire)
			r.Post("/companies/{id}/deposit", s.handleFundCompany)
			r.Post("/employment/quit", s.handleQuit)
			r.Post("/market/listings", s.handleCreateListing)
			r.Post("/market/purchase", s.handlePurchase)
			r.Post("/consume", s.handleConsume)
		})
	})
}

// accountMiddleware resolves the acting account from the X-Account-ID
// header. There is no password layer here; callers are trusted services
// that already authenticated the player upstream.
func (s *Server) accountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Account-ID"))
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing X-Account-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), accountContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accountFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(accountContextKey).(string)
	if !ok || id == "" {
		return "", errors.New("missing account context")
	}
	return id, nil
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.eco.EnsureAccount(r.Context(), id, strings.TrimSpace(in.Name)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	sender, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ReceiverID  string `json:"receiver_id"`
		Amount      string `json:"amount"`
		Currency    string `json:"currency"`
		TxType      string `json:"tx_type"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.TxType == "" {
		in.TxType = economy.TypeTransfer
	}
	receipt, err := s.eco.Transfer(r.Context(), economy.TransferInput{
		SenderID:       sender,
		ReceiverID:     strings.TrimSpace(in.ReceiverID),
		Amount:         strings.TrimSpace(in.Amount),
		Currency:       in.Currency,
		TxType:         in.TxType,
		Description:    in.Description,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	account, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	out, err := s.eco.WorkShift(r.Context(), account)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	owner, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Name         string `json:"name"`
		Currency     string `json:"currency"`
		Wage         string `json:"wage"`
		Productivity string `json:"productivity"`
		MaxEmployees int    `json:"max_employees"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.CreateCompany(r.Context(), economy.CreateCompanyInput{
		OwnerID:        owner,
		Name:           in.Name,
		Currency:       in.Currency,
		Wage:           strings.TrimSpace(in.Wage),
		Productivity:   strings.TrimSpace(in.Productivity),
		MaxEmployees:   in.MaxEmployees,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company id")
		return
	}
	out, err := s.eco.GetCompany(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHire(w http.ResponseWriter, r *http.Request) {
	owner, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	companyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company id")
		return
	}
	var in struct {
		PlayerID string `json:"player_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.eco.Hire(r.Context(), economy.HireInput{
		OwnerID:        owner,
		CompanyID:      companyID,
		PlayerID:       strings.TrimSpace(in.PlayerID),
		IdempotencyKey: idempotencyKey(r),
	}); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"company_id": companyID, "player_id": strings.TrimSpace(in.PlayerID)})
}

func (s *Server) handleFundCompany(w http.ResponseWriter, r *http.Request) {
	owner, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	companyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company id")
		return
	}
	var in struct {
		Amount string `json:"amount"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.FundCompany(r.Context(), economy.FundCompanyInput{
		OwnerID:        owner,
		CompanyID:      companyID,
		Amount:         strings.TrimSpace(in.Amount),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	account, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.eco.Quit(r.Context(), account); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": account, "employed": false})
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	seller, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Item      string `json:"item"`
		Quality   int    `json:"quality"`
		Quantity  int    `json:"quantity"`
		UnitPrice string `json:"unit_price"`
		Currency  string `json:"currency"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.eco.CreateListing(r.Context(), seller, strings.TrimSpace(in.Item), in.Quality, in.Quantity, strings.TrimSpace(in.UnitPrice), in.Currency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleListingsList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	out, err := s.eco.ListListings(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": out})
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	buyer, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ListingID int64 `json:"listing_id"`
		Quantity  int   `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.Purchase(r.Context(), economy.PurchaseInput{
		BuyerID:        buyer,
		ListingID:      in.ListingID,
		Quantity:       in.Quantity,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	account, err := accountFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Item     string `json:"item"`
		Quality  int    `json:"quality"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.eco.Consume(r.Context(), economy.ConsumeInput{
		AccountID: account,
		ItemCode:  strings.TrimSpace(in.Item),
		Quality:   in.Quality,
		Quantity:  in.Quantity,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	entries, err := s.eco.History(r.Context(), accountID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleLedgerVerify(w http.ResponseWriter, r *http.Request) {
	ok, brokenAt, err := s.eco.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "broken_at": brokenAt})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out, err := s.eco.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrDuplicateIdempotency):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, economy.ErrInsufficientFunds), errors.Is(err, economy.ErrInsufficientStock):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, economy.ErrUnknownCurrency),
		errors.Is(err, economy.ErrUnknownType),
		errors.Is(err, economy.ErrUnknownItem),
		errors.Is(err, economy.ErrSameParty),
		errors.Is(err, economy.ErrEmptyParty),
		errors.Is(err, economy.ErrInvalidCompany):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrAccountFrozen),
		errors.Is(err, economy.ErrAccountInactive),
		errors.Is(err, economy.ErrNotCompanyOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, economy.ErrAccountNotFound),
		errors.Is(err, economy.ErrCompanyNotFound),
		errors.Is(err, economy.ErrListingNotFound),
		errors.Is(err, economy.ErrNotInInventory):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, economy.ErrCompanyInsolvent),
		errors.Is(err, economy.ErrCompanySuspended),
		errors.Is(err, economy.ErrCompanyFull),
		errors.Is(err, economy.ErrAlreadyEmployed),
		errors.Is(err, economy.ErrNoEmployer),
		errors.Is(err, economy.ErrTooExhausted),
		errors.Is(err, economy.ErrShiftCooldown),
		errors.Is(err, economy.ErrMealCooldown):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, economy.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key != "" {
		return key
	}
	return uuid.NewString()
}
