// Package httpapi exposes the storefront and admin JSON API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/Devjdias/ecommerceJD/internal/auth"
	"github.com/Devjdias/ecommerceJD/internal/checkout"
	"github.com/Devjdias/ecommerceJD/internal/content"
	"github.com/Devjdias/ecommerceJD/internal/fulfillment"
	"github.com/Devjdias/ecommerceJD/internal/mailer"
	"github.com/Devjdias/ecommerceJD/internal/metrics"
	"github.com/Devjdias/ecommerceJD/internal/store"
)

type Server struct {
	store       *store.Store
	checkout    *checkout.Service
	fulfillment *fulfillment.Service
	tokens      *auth.Manager
}

func New(st *store.Store, co *checkout.Service, ff *fulfillment.Service, tokens *auth.Manager) *Server {
	return &Server{store: st, checkout: co, fulfillment: ff, tokens: tokens}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/books", s.handleListBooks)
	mux.HandleFunc("GET /api/books/{id}", s.handleGetBook)

	mux.HandleFunc("POST /api/checkout", s.handleCheckout)
	mux.HandleFunc("POST /api/orders/{id}/confirm-payment", s.handleConfirmPayment)

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/profile/{id}", s.handleProfile)
	mux.HandleFunc("PUT /api/profile/{id}", s.handleUpdateProfile)
	mux.HandleFunc("POST /api/profile/{id}/password", s.handleChangePassword)

	mux.HandleFunc("POST /api/cart/items", s.handleAddToCart)
	mux.HandleFunc("GET /api/cart/{buyerID}", s.handleCart)
	mux.HandleFunc("DELETE /api/cart/items/{id}", s.handleRemoveFromCart)
	mux.HandleFunc("POST /api/cart/checkout", s.handleCartCheckout)

	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)
	mux.HandleFunc("GET /api/admin/orders/pending", s.admin(s.handlePendingOrders))
	mux.HandleFunc("POST /api/admin/orders/{id}/approve", s.admin(s.handleApprove))
	mux.HandleFunc("POST /api/admin/orders/{id}/reject", s.admin(s.handleReject))
	mux.HandleFunc("GET /api/admin/dashboard", s.admin(s.handleDashboard))
	mux.HandleFunc("GET /api/admin/buyers", s.admin(s.handleBuyers))

	mux.Handle("GET /metrics", metrics.Handler())

	return cors.AllowAll().Handler(mux)
}

// admin wraps a handler so it only runs with a verified Principal, passed
// explicitly to the operation.
func (s *Server) admin(next func(http.ResponseWriter, *http.Request, auth.Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
			return
		}
		p, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r, p)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// fail maps the error taxonomy onto HTTP statuses.
func fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrAlreadyInCart),
		errors.Is(err, store.ErrEmailTaken),
		errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, content.ErrUnavailable), errors.Is(err, mailer.ErrSendFailed):
		writeError(w, http.StatusBadGateway, err)
	default:
		log.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}
