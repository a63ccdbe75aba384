package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedBook(t *testing.T, s *Store, title string, price float64) int64 {
	t.Helper()
	id, err := s.CreateBook(context.Background(), &Book{
		Title:   title,
		Author:  ns("Autor"),
		Price:   decimal.NewFromFloat(price),
		Content: "livro.pdf",
	})
	require.NoError(t, err)
	return id
}

func seedOrder(t *testing.T, s *Store, bookID int64, status Status) int64 {
	t.Helper()
	id, err := s.CreateOrder(context.Background(), nil, &Order{
		Email:  "a@x.com",
		BookID: bookID,
		Status: status,
		Total:  decimal.NewFromFloat(29.90),
	})
	require.NoError(t, err)
	return id
}

func TestMigrateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// reopening must not reapply migrations
	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestTransitionGraph(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bookID := seedBook(t, s, "Dom Casmurro", 29.90)

	cases := []struct {
		name    string
		start   Status
		to      Status
		from    []Status
		wantErr error
	}{
		{"pending to awaiting approval", StatusPending, StatusAwaitingApproval, []Status{StatusAwaitingPayment, StatusPending}, nil},
		{"awaiting payment to awaiting approval", StatusAwaitingPayment, StatusAwaitingApproval, []Status{StatusAwaitingPayment, StatusPending}, nil},
		{"awaiting approval to paid", StatusAwaitingApproval, StatusPaid, []Status{StatusAwaitingApproval}, nil},
		{"paid is terminal", StatusPaid, StatusAwaitingApproval, []Status{StatusAwaitingPayment, StatusPending}, ErrInvalidTransition},
		{"rejected is terminal", StatusRejected, StatusPaid, []Status{StatusAwaitingApproval}, ErrInvalidTransition},
		{"pending cannot jump to paid", StatusPending, StatusPaid, []Status{StatusAwaitingApproval}, ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := seedOrder(t, s, bookID, tc.start)
			err := s.Transition(ctx, id, tc.to, tc.from...)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				// stored state untouched
				o, err := s.Order(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, tc.start, o.Status)
				return
			}
			require.NoError(t, err)
			o, err := s.Order(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tc.to, o.Status)
		})
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	s := newTestStore(t)
	err := s.Transition(context.Background(), 9999, StatusPaid, StatusAwaitingApproval)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRejectOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bookID := seedBook(t, s, "Iracema", 14.90)
	id := seedOrder(t, s, bookID, StatusAwaitingApproval)

	require.NoError(t, s.RejectOrder(ctx, id, "duplicate"))

	o, err := s.Order(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, o.Status)
	assert.Equal(t, "duplicate", o.RejectReason.String)

	// terminal: a second transition of any kind fails
	require.ErrorIs(t, s.RejectOrder(ctx, id, "again"), ErrInvalidTransition)
	require.ErrorIs(t, s.Transition(ctx, id, StatusPaid, StatusAwaitingApproval), ErrInvalidTransition)
}

func TestSettlementRefIsWriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bookID := seedBook(t, s, "Helena", 9.90)
	id := seedOrder(t, s, bookID, StatusPending)

	require.NoError(t, s.SetSettlementRef(ctx, nil, id, "SIMULADO_1"))
	require.ErrorIs(t, s.SetSettlementRef(ctx, nil, id, "SIMULADO_2"), ErrSettlementRefSet)

	o, err := s.Order(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "SIMULADO_1", o.PixRef.String)

	require.ErrorIs(t, s.SetSettlementRef(ctx, nil, 555, "x"), ErrNotFound)
}

func TestTransactRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bookID := seedBook(t, s, "Senhora", 21.00)
	require.NoError(t, s.AddCartItem(ctx, 5, bookID))

	boom := errors.New("boom")
	var orderID int64
	err := s.Transact(ctx, func(tx *sqlx.Tx) error {
		id, err := s.CreateOrder(ctx, tx, &Order{
			Email:  "a@x.com",
			BookID: bookID,
			Status: StatusAwaitingPayment,
			Total:  decimal.NewFromFloat(21.00),
		})
		require.NoError(t, err)
		orderID = id
		require.NoError(t, s.ClearCart(ctx, tx, 5))
		return boom
	})
	require.ErrorIs(t, err, boom)

	// neither write survives: no order, cart intact
	_, err = s.Order(ctx, orderID)
	require.ErrorIs(t, err, ErrNotFound)
	lines, err := s.CartLines(ctx, nil, 5)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func TestTransactRollsBackOnPanic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bookID := seedBook(t, s, "Lucíola", 16.00)

	var orderID int64
	require.Panics(t, func() {
		_ = s.Transact(ctx, func(tx *sqlx.Tx) error {
			id, err := s.CreateOrder(ctx, tx, &Order{
				Email:  "a@x.com",
				BookID: bookID,
				Status: StatusPending,
				Total:  decimal.NewFromFloat(16.00),
			})
			require.NoError(t, err)
			orderID = id
			panic("boom")
		})
	})

	_, err := s.Order(ctx, orderID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCartUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bookID := seedBook(t, s, "Quincas Borba", 22.00)

	require.NoError(t, s.AddCartItem(ctx, 1, bookID))
	require.ErrorIs(t, s.AddCartItem(ctx, 1, bookID), ErrAlreadyInCart)

	lines, err := s.CartLines(ctx, nil, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, bookID, lines[0].BookID)

	// unknown book is rejected up front
	require.ErrorIs(t, s.AddCartItem(ctx, 1, 404), ErrNotFound)
}

func TestRemoveCartItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bookID := seedBook(t, s, "Esaú e Jacó", 18.50)

	require.NoError(t, s.AddCartItem(ctx, 7, bookID))
	lines, err := s.CartLines(ctx, nil, 7)
	require.NoError(t, err)
	require.Len(t, lines, 1)

	require.NoError(t, s.RemoveCartItem(ctx, lines[0].ID))
	require.ErrorIs(t, s.RemoveCartItem(ctx, lines[0].ID), ErrNotFound)

	lines, err = s.CartLines(ctx, nil, 7)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestBuyerEmailUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateBuyer(ctx, "Ana", "ana@x.com", "hash")
	require.NoError(t, err)
	_, err = s.CreateBuyer(ctx, "Outra Ana", "ana@x.com", "hash")
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = s.CreateBuyer(ctx, "Bia", "bia@x.com", "hash")
	require.NoError(t, err)
	require.ErrorIs(t, s.UpdateBuyerProfile(ctx, id, "Ana", "bia@x.com"), ErrEmailTaken)
	require.NoError(t, s.UpdateBuyerProfile(ctx, id, "Ana Maria", "ana.maria@x.com"))

	name, err := s.DisplayName(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", name)
}

func TestBookCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedBook(t, s, "O Guarani", 12.00)

	b1, err := s.Book(ctx, id)
	require.NoError(t, err)

	// mutate behind the cache's back; the cached row keeps serving
	_, err = s.db.ExecContext(ctx, `UPDATE books SET title='changed' WHERE id=?`, id)
	require.NoError(t, err)

	b2, err := s.Book(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, b1.Title, b2.Title)

	_, err = s.Book(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMoneyAggregatesAreExact(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	buyerID, err := s.CreateBuyer(ctx, "Ana", "ana@x.com", "hash")
	require.NoError(t, err)
	bookID := seedBook(t, s, "Dom Casmurro", 29.90)

	// 0.10 + 0.20 drifts to 0.30000000000000004 under float addition
	for _, total := range []string{"0.10", "0.20"} {
		_, err := s.CreateOrder(ctx, nil, &Order{
			Email:   "ana@x.com",
			BookID:  bookID,
			BuyerID: sql.NullInt64{Int64: buyerID, Valid: true},
			Status:  StatusPaid,
			Total:   decimal.RequireFromString(total),
		})
		require.NoError(t, err)
	}

	want := decimal.RequireFromString("0.30")

	st, err := s.StatsForBuyer(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.PaidOrders)
	assert.True(t, st.TotalSpent.Equal(want), "spent %s", st.TotalSpent)

	dash, err := s.Dashboard(ctx)
	require.NoError(t, err)
	assert.True(t, dash.TotalRevenue.Equal(want), "revenue %s", dash.TotalRevenue)
	assert.True(t, dash.RevenueToday.Equal(want), "today %s", dash.RevenueToday)
	assert.Equal(t, "Dom Casmurro", dash.BestSeller)

	sums, err := s.BuyerSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 2, sums[0].TotalOrders)
	assert.True(t, sums[0].TotalSpent.Equal(want), "spent %s", sums[0].TotalSpent)
}

func TestOrderTotalRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	bookID := seedBook(t, s, "Til", 29.90)

	id, err := s.CreateOrder(ctx, nil, &Order{
		Email:   "a@x.com",
		BookID:  bookID,
		BuyerID: sql.NullInt64{Int64: 3, Valid: true},
		Status:  StatusPending,
		Total:   decimal.RequireFromString("29.90"),
	})
	require.NoError(t, err)

	o, err := s.Order(ctx, id)
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("29.90")), "total %s", o.Total)
	assert.Equal(t, int64(3), o.BuyerID.Int64)
	assert.NotZero(t, o.CreatedUnix)
}
