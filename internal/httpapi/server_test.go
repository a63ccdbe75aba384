package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devjdias/ecommerceJD/internal/auth"
	"github.com/Devjdias/ecommerceJD/internal/checkout"
	"github.com/Devjdias/ecommerceJD/internal/events"
	"github.com/Devjdias/ecommerceJD/internal/fulfillment"
	"github.com/Devjdias/ecommerceJD/internal/store"
)

type stubFetcher struct{ blob []byte }

func (s stubFetcher) Acquire(ctx context.Context, locator string) ([]byte, error) {
	return s.blob, nil
}

type stubDispatcher struct{ sent int }

func (s *stubDispatcher) Dispatch(ctx context.Context, to, subject, body, name string, blob []byte) error {
	s.sent++
	return nil
}

type fixture struct {
	ts    *httptest.Server
	store *store.Store
	mail  *stubDispatcher
	token string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hash, err := auth.HashPassword("admin-pass")
	require.NoError(t, err)
	_, err = st.CreateAdmin(ctx, "admin@x.com", hash)
	require.NoError(t, err)

	mail := &stubDispatcher{}
	tokens := auth.NewManager("test-secret")
	srv := New(st,
		checkout.New(st, events.Nop{}),
		fulfillment.New(st, stubFetcher{blob: []byte("%PDF fake")}, mail, events.Nop{}),
		tokens)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, store: st, mail: mail}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &buf)
	require.NoError(t, err)
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	resp, out := f.do(t, http.MethodPost, "/api/admin/login",
		map[string]string{"email": "admin@x.com", "password": "admin-pass"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	f.token = out["token"].(string)
}

func seedBook(t *testing.T, st *store.Store, title, price string) int64 {
	t.Helper()
	id, err := st.CreateBook(context.Background(), &store.Book{
		Title:   title,
		Price:   decimal.RequireFromString(price),
		Content: "livro.pdf",
	})
	require.NoError(t, err)
	return id
}

func TestCheckoutFlow(t *testing.T) {
	f := newFixture(t)
	bookID := seedBook(t, f.store, "Dom Casmurro", "29.90")

	resp, out := f.do(t, http.MethodPost, "/api/checkout",
		map[string]any{"email": "a@x.com", "book_id": bookID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, out["pix_payload"])
	assert.NotEmpty(t, out["qr_base64"])

	orderID := int64(out["order_id"].(float64))
	resp, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/orders/%d/confirm-payment", orderID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	o, err := f.store.Order(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusAwaitingApproval, o.Status)
}

func TestAdminApproveFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := seedBook(t, f.store, "Iracema", "14.90")

	orderID, err := f.store.CreateOrder(ctx, nil, &store.Order{
		Email: "a@x.com", BookID: bookID,
		Status: store.StatusAwaitingApproval,
		Total:  decimal.RequireFromString("14.90"),
	})
	require.NoError(t, err)

	// admin endpoints refuse anonymous callers
	resp, _ := f.do(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%d/approve", orderID), nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	f.login(t)

	resp, out := f.do(t, http.MethodGet, "/api/admin/orders/pending", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["orders"], 1)

	resp, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%d/approve", orderID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.mail.sent)

	o, err := f.store.Order(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPaid, o.Status)

	// a second approval of a terminal order conflicts
	resp, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%d/approve", orderID), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, f.mail.sent, "nothing was re-sent")
}

func TestAdminRejectFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookID := seedBook(t, f.store, "Til", "20.00")

	orderID, err := f.store.CreateOrder(ctx, nil, &store.Order{
		Email: "a@x.com", BookID: bookID,
		Status: store.StatusAwaitingApproval,
		Total:  decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)

	f.login(t)
	resp, _ := f.do(t, http.MethodPost, fmt.Sprintf("/api/admin/orders/%d/reject", orderID),
		map[string]string{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	o, err := f.store.Order(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRejected, o.Status)
	assert.Equal(t, "duplicate", o.RejectReason.String)
	assert.Zero(t, f.mail.sent)
}

func TestCartEndpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b1 := seedBook(t, f.store, "Helena", "9.90")
	b2 := seedBook(t, f.store, "O Guarani", "12.10")

	buyerID, err := f.store.CreateBuyer(ctx, "Ana", "ana@x.com", "hash")
	require.NoError(t, err)

	for _, id := range []int64{b1, b2} {
		resp, _ := f.do(t, http.MethodPost, "/api/cart/items",
			map[string]any{"buyer_id": buyerID, "book_id": id})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// duplicate add is a client error
	resp, _ := f.do(t, http.MethodPost, "/api/cart/items",
		map[string]any{"buyer_id": buyerID, "book_id": b1})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out := f.do(t, http.MethodGet, fmt.Sprintf("/api/cart/%d", buyerID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["items"], 2)

	resp, out = f.do(t, http.MethodPost, "/api/cart/checkout", map[string]any{"buyer_id": buyerID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, out["books"], "Helena")
	assert.Contains(t, out["books"], "O Guarani")

	// consolidation emptied the cart
	resp, _ = f.do(t, http.MethodPost, "/api/cart/checkout", map[string]any{"buyer_id": buyerID})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownOrderIs404(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	resp, _ := f.do(t, http.MethodPost, "/api/admin/orders/999/approve", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
