package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/Devjdias/ecommerceJD/internal/auth"
	"github.com/Devjdias/ecommerceJD/internal/checkout"
	"github.com/Devjdias/ecommerceJD/internal/store"
)

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.store.Books(r.Context(), 0)
	if err != nil {
		fail(w, err)
		return
	}
	out := make([]map[string]any, 0, len(books))
	for _, b := range books {
		out = append(out, bookJSON(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": out})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, err := s.store.Book(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookJSON(b))
}

func bookJSON(b store.Book) map[string]any {
	return map[string]any{
		"id":     b.ID,
		"title":  b.Title,
		"author": b.Author.String,
		"price":  b.Price,
		"image":  b.Image.String,
	}
}

// receiptJSON includes a QR rendering of the payment payload so the frontend
// can show it directly.
func receiptJSON(rcpt *checkout.Receipt) map[string]any {
	out := map[string]any{
		"order_id":    rcpt.OrderID,
		"total":       rcpt.Total,
		"pix_payload": rcpt.PixPayload,
		"books":       rcpt.Titles,
	}
	if png, err := qrcode.Encode(rcpt.PixPayload, qrcode.Medium, 256); err == nil {
		out["qr_base64"] = base64.StdEncoding.EncodeToString(png)
	} else {
		log.Warn().Err(err).Msg("qr encoding failed")
	}
	return out
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		BookID  int64  `json:"book_id"`
		BuyerID *int64 `json:"buyer_id"`
	}
	if err := decode(r, &req); err != nil || req.Email == "" || req.BookID == 0 {
		writeError(w, http.StatusBadRequest, errors.New("email and book_id are required"))
		return
	}
	rcpt, err := s.checkout.Checkout(r.Context(), req.Email, req.BookID, req.BuyerID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptJSON(rcpt))
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.checkout.ConfirmPayment(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "Pagamento confirmado! Aguardando aprovação do administrador.",
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil || req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("name, email and password are required"))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(w, err)
		return
	}
	id, err := s.store.CreateBuyer(r.Context(), req.Name, req.Email, hash)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "buyer_id": id})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, err := s.store.BuyerByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = auth.ErrInvalidCredentials
		}
		fail(w, err)
		return
	}
	if err := auth.CheckPassword(b.PasswordHash, req.Password); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"buyer": map[string]any{
			"id": b.ID, "name": b.Name, "email": b.Email,
		},
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, err := s.store.Buyer(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	stats, err := s.store.StatsForBuyer(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	orders, err := s.store.OrdersByBuyer(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	ordersOut := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		ordersOut = append(ordersOut, map[string]any{
			"id":     o.ID,
			"title":  o.Title,
			"author": o.Author.String,
			"price":  o.Price,
			"status": o.Status,
			"date":   o.CreatedUnix,
			"image":  o.Image.String,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"buyer": map[string]any{
			"id": b.ID, "name": b.Name, "email": b.Email, "member_since": b.CreatedUnix,
		},
		"stats": map[string]any{
			"total_orders":   stats.TotalOrders,
			"paid_orders":    stats.PaidOrders,
			"pending_orders": stats.PendingOrders,
			"total_spent":    stats.TotalSpent,
		},
		"orders": ordersOut,
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil || req.Name == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, errors.New("name and email are required"))
		return
	}
	if err := s.store.UpdateBuyerProfile(r.Context(), id, req.Name, req.Email); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := decode(r, &req); err != nil || req.Current == "" || req.New == "" {
		writeError(w, http.StatusBadRequest, errors.New("current and new passwords are required"))
		return
	}
	b, err := s.store.Buyer(r.Context(), id)
	if err != nil {
		fail(w, err)
		return
	}
	if err := auth.CheckPassword(b.PasswordHash, req.Current); err != nil {
		fail(w, err)
		return
	}
	hash, err := auth.HashPassword(req.New)
	if err != nil {
		fail(w, err)
		return
	}
	if err := s.store.UpdateBuyerPassword(r.Context(), id, hash); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerID int64 `json:"buyer_id"`
		BookID  int64 `json:"book_id"`
	}
	if err := decode(r, &req); err != nil || req.BuyerID == 0 || req.BookID == 0 {
		writeError(w, http.StatusBadRequest, errors.New("buyer_id and book_id are required"))
		return
	}
	if err := s.checkout.AddToCart(r.Context(), req.BuyerID, req.BookID); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCart(w http.ResponseWriter, r *http.Request) {
	buyerID, err := pathID(r, "buyerID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lines, total, err := s.checkout.Cart(r.Context(), buyerID)
	if err != nil {
		fail(w, err)
		return
	}
	items := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		items = append(items, map[string]any{
			"id":      l.ID,
			"book_id": l.BookID,
			"title":   l.Title,
			"author":  l.Author.String,
			"price":   l.Price,
			"image":   l.Image.String,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.checkout.RemoveFromCart(r.Context(), id); err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCartCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerID int64 `json:"buyer_id"`
	}
	if err := decode(r, &req); err != nil || req.BuyerID == 0 {
		writeError(w, http.StatusBadRequest, errors.New("buyer_id is required"))
		return
	}
	rcpt, err := s.checkout.Consolidate(r.Context(), req.BuyerID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptJSON(rcpt))
}
