package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DashboardStats backs the admin dashboard.
type DashboardStats struct {
	TotalOrders      int             `db:"total_orders"`
	PaidOrders       int             `db:"paid_orders"`
	PendingOrders    int             `db:"pending_orders"`
	AwaitingApproval int             `db:"awaiting_approval"`
	OrdersToday      int             `db:"orders_today"`
	TotalBooks       int             `db:"total_books"`
	TotalBuyers      int             `db:"total_buyers"`
	TotalRevenue     decimal.Decimal `db:"-"`
	RevenueToday     decimal.Decimal `db:"-"`
	BestSeller       string          `db:"-"`
	NewBuyersMonth   int             `db:"-"`
}

func (s *Store) Dashboard(ctx context.Context) (DashboardStats, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Unix()

	var st DashboardStats
	err := s.db.GetContext(ctx, &st, `
  SELECT COUNT(*) AS total_orders,
         COUNT(CASE WHEN status=? THEN 1 END) AS paid_orders,
         COUNT(CASE WHEN status IN (?,?) THEN 1 END) AS pending_orders,
         COUNT(CASE WHEN status=? THEN 1 END) AS awaiting_approval,
         COUNT(CASE WHEN created_unix>=? THEN 1 END) AS orders_today,
         (SELECT COUNT(*) FROM books) AS total_books,
         (SELECT COUNT(*) FROM buyers) AS total_buyers
  FROM orders`,
		StatusPaid, StatusPending, StatusAwaitingPayment, StatusAwaitingApproval, dayStart)
	if err != nil {
		return st, err
	}

	// Revenue is summed over decimal rows; SUM over the TEXT total column
	// would go through float.
	var paid []struct {
		Total       decimal.Decimal `db:"total"`
		CreatedUnix int64           `db:"created_unix"`
	}
	err = s.db.SelectContext(ctx, &paid,
		`SELECT total, created_unix FROM orders WHERE status=?`, StatusPaid)
	if err != nil {
		return st, err
	}
	st.TotalRevenue = decimal.Zero
	st.RevenueToday = decimal.Zero
	for _, p := range paid {
		st.TotalRevenue = st.TotalRevenue.Add(p.Total)
		if p.CreatedUnix >= dayStart {
			st.RevenueToday = st.RevenueToday.Add(p.Total)
		}
	}

	err = s.db.GetContext(ctx, &st.BestSeller, `
  SELECT l.title
  FROM orders p JOIN books l ON p.book_id = l.id
  WHERE p.status=?
  GROUP BY l.title ORDER BY COUNT(*) DESC LIMIT 1`, StatusPaid)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return st, err
	}

	err = s.db.GetContext(ctx, &st.NewBuyersMonth,
		`SELECT COUNT(*) FROM buyers WHERE created_unix>=?`, monthStart)
	if err != nil {
		return st, err
	}
	return st, nil
}

// BuyerSummary is a buyer row with spend totals for the admin customer list.
type BuyerSummary struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Email       string          `db:"email"`
	CreatedUnix int64           `db:"created_unix"`
	TotalOrders int             `db:"total_orders"`
	TotalSpent  decimal.Decimal `db:"-"`
}

func (s *Store) BuyerSummaries(ctx context.Context) ([]BuyerSummary, error) {
	var out []BuyerSummary
	err := s.db.SelectContext(ctx, &out, `
  SELECT u.id, u.name, u.email, u.created_unix,
         COUNT(p.id) AS total_orders
  FROM buyers u
  LEFT JOIN orders p ON u.id = p.buyer_id
  GROUP BY u.id, u.name, u.email, u.created_unix`)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		BuyerID int64           `db:"buyer_id"`
		Total   decimal.Decimal `db:"total"`
	}
	err = s.db.SelectContext(ctx, &rows,
		`SELECT buyer_id, total FROM orders WHERE status=? AND buyer_id IS NOT NULL`, StatusPaid)
	if err != nil {
		return nil, err
	}
	spent := make(map[int64]decimal.Decimal, len(rows))
	for _, r := range rows {
		spent[r.BuyerID] = spent[r.BuyerID].Add(r.Total)
	}
	for i := range out {
		out[i].TotalSpent = spent[out[i].ID]
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TotalSpent.GreaterThan(out[j].TotalSpent)
	})
	return out, nil
}

func sumTotals(vals []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range vals {
		sum = sum.Add(v)
	}
	return sum
}
