// Package checkout turns carts and buy-now clicks into orders with a
// simulated payment payload attached.
package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Devjdias/ecommerceJD/internal/events"
	"github.com/Devjdias/ecommerceJD/internal/pix"
	"github.com/Devjdias/ecommerceJD/internal/store"
)

// ErrEmptyCart means consolidation was requested on a cart with no items.
var ErrEmptyCart = errors.New("cart is empty")

// Receipt is what the buyer gets back from a checkout: the order plus the
// payment payload to settle it.
type Receipt struct {
	OrderID    int64
	Total      decimal.Decimal
	PixPayload string
	Titles     []string
}

type Service struct {
	store  *store.Store
	events events.Publisher
}

func New(st *store.Store, pub events.Publisher) *Service {
	return &Service{store: st, events: pub}
}

// Checkout creates a single-book order for a buyer or a guest. The order
// starts PENDING; the payment payload is generated in the same call and the
// settlement reference recorded once.
func (s *Service) Checkout(ctx context.Context, email string, bookID int64, buyerID *int64) (*Receipt, error) {
	book, err := s.store.Book(ctx, bookID)
	if err != nil {
		return nil, err
	}

	o := store.Order{
		Email:  email,
		BookID: bookID,
		Status: store.StatusPending,
		Total:  book.Price,
	}
	if buyerID != nil {
		o.BuyerID = sql.NullInt64{Int64: *buyerID, Valid: true}
	}
	id, err := s.store.CreateOrder(ctx, nil, &o)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetSettlementRef(ctx, nil, id, pix.Ref(id)); err != nil {
		return nil, err
	}

	payload := pix.Generate(book.Price, email)
	log.Info().Int64("order_id", id).Str("book", book.Title).Msg("order created with simulated payment")

	s.events.Publish(events.RKOrderCreated, events.OrderEvent{
		OrderID: id, Email: email, Total: book.Price.StringFixed(2),
	})

	return &Receipt{OrderID: id, Total: book.Price, PixPayload: payload, Titles: []string{book.Title}}, nil
}

// Consolidate collapses the buyer's whole cart into exactly one order. Order
// creation, settlement reference and cart clearing land in one transaction:
// there is no observable state with the order created and the cart still
// populated, or the other way round.
func (s *Service) Consolidate(ctx context.Context, buyerID int64) (*Receipt, error) {
	buyer, err := s.store.Buyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	var rcpt Receipt
	err = s.store.Transact(ctx, func(tx *sqlx.Tx) error {
		lines, err := s.store.CartLines(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		total := decimal.Zero
		titles := make([]string, 0, len(lines))
		for _, l := range lines {
			total = total.Add(l.Price)
			titles = append(titles, l.Title)
		}
		manifest := fmt.Sprintf("CONSOLIDATED ORDER - %d book(s): %s", len(lines), strings.Join(titles, ", "))

		o := store.Order{
			Email:    buyer.Email,
			BookID:   lines[0].BookID, // primary reference; manifest carries the rest
			BuyerID:  sql.NullInt64{Int64: buyerID, Valid: true},
			Status:   store.StatusAwaitingPayment,
			Total:    total,
			Manifest: sql.NullString{String: manifest, Valid: true},
		}
		id, err := s.store.CreateOrder(ctx, tx, &o)
		if err != nil {
			return err
		}
		if err := s.store.SetSettlementRef(ctx, tx, id, pix.Ref(id)); err != nil {
			return err
		}
		if err := s.store.ClearCart(ctx, tx, buyerID); err != nil {
			return err
		}

		rcpt = Receipt{
			OrderID:    id,
			Total:      total,
			PixPayload: pix.Generate(total, buyer.Email),
			Titles:     titles,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("order_id", rcpt.OrderID).Int("books", len(rcpt.Titles)).
		Str("total", rcpt.Total.StringFixed(2)).Msg("cart consolidated")

	s.events.Publish(events.RKOrderCreated, events.OrderEvent{
		OrderID: rcpt.OrderID, BuyerID: buyerID, Email: buyer.Email,
		Total: rcpt.Total.StringFixed(2),
	})
	return &rcpt, nil
}

// ConfirmPayment records the buyer-side payment confirmation: the order moves
// to AWAITING_APPROVAL and waits for an administrator.
func (s *Service) ConfirmPayment(ctx context.Context, orderID int64) error {
	err := s.store.Transition(ctx, orderID, store.StatusAwaitingApproval,
		store.StatusAwaitingPayment, store.StatusPending)
	if err != nil {
		return err
	}
	log.Info().Int64("order_id", orderID).Msg("payment confirmed, awaiting admin approval")
	s.events.Publish(events.RKOrderAwaitingApproval, events.OrderEvent{OrderID: orderID})
	return nil
}

// AddToCart, RemoveFromCart and Cart are thin passthroughs kept here so the
// HTTP layer talks to one checkout surface.

func (s *Service) AddToCart(ctx context.Context, buyerID, bookID int64) error {
	return s.store.AddCartItem(ctx, buyerID, bookID)
}

func (s *Service) RemoveFromCart(ctx context.Context, itemID int64) error {
	return s.store.RemoveCartItem(ctx, itemID)
}

func (s *Service) Cart(ctx context.Context, buyerID int64) ([]store.CartLine, decimal.Decimal, error) {
	lines, err := s.store.CartLines(ctx, nil, buyerID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price)
	}
	return lines, total, nil
}
