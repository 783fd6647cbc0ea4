package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"mintage/internal/economy"
	"mintage/internal/money"
)

func TestDomainErrorStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{economy.ErrInsufficientFunds, http.StatusBadRequest},
		{money.ErrInvalidAmount, http.StatusBadRequest},
		{economy.ErrUnknownCurrency, http.StatusBadRequest},
		{economy.ErrSameParty, http.StatusBadRequest},
		{economy.ErrInvalidCompany, http.StatusBadRequest},
		{economy.ErrAccountFrozen, http.StatusForbidden},
		{economy.ErrAccountInactive, http.StatusForbidden},
		{economy.ErrNotCompanyOwner, http.StatusForbidden},
		{economy.ErrAccountNotFound, http.StatusNotFound},
		{economy.ErrCompanyNotFound, http.StatusNotFound},
		{economy.ErrListingNotFound, http.StatusNotFound},
		{economy.ErrCompanyInsolvent, http.StatusConflict},
		{economy.ErrCompanyFull, http.StatusConflict},
		{economy.ErrAlreadyEmployed, http.StatusConflict},
		{economy.ErrShiftCooldown, http.StatusConflict},
		{economy.ErrDuplicateIdempotency, http.StatusConflict},
		{economy.ErrTxConflict, http.StatusConflict},
		{economy.ErrIntegrityViolation, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		if rec.Code != tc.want {
			t.Errorf("writeDomainError(%v) = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestIdempotencyKeyFallsBackToUUID(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/v1/transfers", nil)
	r.Header.Set("Idempotency-Key", "abc-123")
	if got := idempotencyKey(r); got != "abc-123" {
		t.Fatalf("idempotencyKey = %q, want header value", got)
	}

	r = httptest.NewRequest(http.MethodPost, "/v1/transfers", nil)
	first := idempotencyKey(r)
	second := idempotencyKey(r)
	if first == "" || second == "" {
		t.Fatal("generated key is empty")
	}
	if first == second {
		t.Fatal("generated keys must be unique per call")
	}
}

func TestAccountMiddlewareRejectsMissingHeader(t *testing.T) {
	s := &Server{}
	called := false
	h := s.accountMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/work", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Fatal("handler ran without an account header")
	}
}

func TestAccountMiddlewarePassesAccountThrough(t *testing.T) {
	s := &Server{}
	var got string
	h := s.accountMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = accountFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/v1/work", nil)
	r.Header.Set("X-Account-ID", "alice")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if got != "alice" {
		t.Fatalf("account from context = %q, want alice", got)
	}
}
