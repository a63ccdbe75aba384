package httpapi

import (
	"errors"
	"net/http"

	"github.com/Devjdias/ecommerceJD/internal/auth"
	"github.com/Devjdias/ecommerceJD/internal/store"
)

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}
	a, err := s.store.AdminByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = auth.ErrInvalidCredentials
		}
		fail(w, err)
		return
	}
	if err := auth.CheckPassword(a.PasswordHash, req.Password); err != nil {
		fail(w, err)
		return
	}
	token, err := s.tokens.Issue(auth.Principal{AdminID: a.ID, Email: a.Email})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "token": token})
}

func (s *Server) handlePendingOrders(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	orders, err := s.store.PendingApproval(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	out := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		out = append(out, map[string]any{
			"id":          o.ID,
			"created":     o.CreatedUnix,
			"total":       o.Total,
			"status":      o.Status,
			"buyer_name":  o.BuyerName,
			"buyer_email": o.BuyerEmail,
			"book_title":  o.BookTitle,
			"book_image":  o.BookImage.String,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orders": out})
}

// handleApprove blocks until fulfillment finishes; a remote download can
// keep it busy for minutes.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.fulfillment.Approve(r.Context(), p, id); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "Pedido aprovado! E-book enviado ao cliente.",
	})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = decode(r, &req) // body optional; a blank reason gets a default
	if err := s.fulfillment.Reject(r.Context(), p, id, req.Reason); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Pedido rejeitado."})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	stats, err := s.store.Dashboard(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total_orders":      stats.TotalOrders,
		"paid_orders":       stats.PaidOrders,
		"pending_orders":    stats.PendingOrders,
		"awaiting_approval": stats.AwaitingApproval,
		"total_revenue":     stats.TotalRevenue,
		"orders_today":      stats.OrdersToday,
		"revenue_today":     stats.RevenueToday,
		"total_books":       stats.TotalBooks,
		"total_buyers":      stats.TotalBuyers,
		"best_seller":       stats.BestSeller,
		"new_buyers_month":  stats.NewBuyersMonth,
	})
}

func (s *Server) handleBuyers(w http.ResponseWriter, r *http.Request, _ auth.Principal) {
	buyers, err := s.store.BuyerSummaries(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	out := make([]map[string]any, 0, len(buyers))
	for _, b := range buyers {
		out = append(out, map[string]any{
			"id":           b.ID,
			"name":         b.Name,
			"email":        b.Email,
			"member_since": b.CreatedUnix,
			"total_orders": b.TotalOrders,
			"total_spent":  b.TotalSpent,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "buyers": out})
}
