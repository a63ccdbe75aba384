// Package fulfillment drives an approved order to completion: acquire the
// purchased file, deliver it by email, and only then finalise the order.
package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Devjdias/ecommerceJD/internal/auth"
	"github.com/Devjdias/ecommerceJD/internal/events"
	"github.com/Devjdias/ecommerceJD/internal/metrics"
	"github.com/Devjdias/ecommerceJD/internal/store"
)

// Fetcher resolves a content locator to raw file bytes.
type Fetcher interface {
	Acquire(ctx context.Context, locator string) ([]byte, error)
}

// Dispatcher hands a message with one attachment to the mail transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, to, subject, body, attachmentName string, attachment []byte) error
}

const (
	mailSubject    = "Tudo certo! Seu ebook já está com você \U0001F4DA✨"
	fallbackName   = "Cliente"
	maxTitleInName = 30
)

type Service struct {
	store  *store.Store
	fetch  Fetcher
	mail   Dispatcher
	events events.Publisher
}

func New(st *store.Store, fetch Fetcher, mail Dispatcher, pub events.Publisher) *Service {
	return &Service{store: st, fetch: fetch, mail: mail, events: pub}
}

// Approve runs the full fulfillment for an order awaiting approval. The
// status becomes PAID only after the transport accepts the message; any
// earlier failure leaves the order untouched so the same approval can be
// retried. Callers should expect a long blocking call (remote downloads
// retry for up to a few minutes).
func (s *Service) Approve(ctx context.Context, p auth.Principal, orderID int64) error {
	o, err := s.store.Order(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != store.StatusAwaitingApproval {
		return store.ErrInvalidTransition
	}

	log.Info().Int64("order_id", orderID).Str("admin", p.Email).Msg("approval requested")

	start := time.Now()
	err = s.fulfill(ctx, o)
	metrics.FulfillmentSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FulfillmentsTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.FulfillmentsTotal.WithLabelValues("success").Inc()
	return nil
}

func (s *Service) fulfill(ctx context.Context, o store.Order) error {
	book, err := s.store.Book(ctx, o.BookID)
	if err != nil {
		return err
	}

	blob, err := s.fetch.Acquire(ctx, book.Content)
	if err != nil {
		return err
	}

	// Best effort: an unresolvable name degrades to a placeholder, it never
	// fails the delivery.
	name := fallbackName
	if o.BuyerID.Valid {
		if n, err := s.store.DisplayName(ctx, o.BuyerID.Int64); err == nil && n != "" {
			name = n
		}
	}

	if err := s.mail.Dispatch(ctx, o.Email, mailSubject,
		mailBody(name, book.Title), attachmentName(book.Title), blob); err != nil {
		return err
	}

	// The transport has the message; this commit is the only state change on
	// this path. If it fails the whole call fails and a re-approval may send
	// the email again: accepted at-least-once tradeoff.
	if err := s.store.Transition(ctx, o.ID, store.StatusPaid, store.StatusAwaitingApproval); err != nil {
		return err
	}

	log.Info().Int64("order_id", o.ID).Str("to", o.Email).Msg("order fulfilled")
	s.events.Publish(events.RKOrderPaid, events.OrderEvent{
		OrderID: o.ID, Email: o.Email, Total: o.Total.StringFixed(2),
	})
	return nil
}

// Reject terminally refuses an order awaiting approval. No content is fetched
// and nothing is mailed.
func (s *Service) Reject(ctx context.Context, p auth.Principal, orderID int64, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "Não especificado"
	}
	if err := s.store.RejectOrder(ctx, orderID, reason); err != nil {
		return err
	}
	log.Info().Int64("order_id", orderID).Str("admin", p.Email).Str("reason", reason).Msg("order rejected")
	s.events.Publish(events.RKOrderRejected, events.OrderEvent{OrderID: orderID, Reason: reason})
	return nil
}

func attachmentName(title string) string {
	if r := []rune(title); len(r) > maxTitleInName {
		title = string(r[:maxTitleInName])
	}
	return strings.ReplaceAll(title, " ", "_") + ".pdf"
}

func mailBody(name, title string) string {
	return fmt.Sprintf(
		"Olá, %s!\n\n"+
			"Que ótima notícia: seu pagamento foi confirmado!\n\n"+
			"O arquivo do seu novo e-book, %q, já está anexado a este e-mail. "+
			"Agora é só baixar, preparar um café (ou chá!) e aproveitar a leitura.\n\n"+
			"Instruções rápidas:\n"+
			"- Baixe o anexo.\n"+
			"- Salve em seu dispositivo preferido.\n"+
			"- Comece a ler!\n\n"+
			"Obrigada por escolher a ClicLeitura. Esperamos que essa história seja incrível!\n\n"+
			"Um abraço,\n"+
			"Equipe ClicLeitura!\n",
		name, title)
}
