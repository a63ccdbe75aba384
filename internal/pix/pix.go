// Package pix produces the simulated PIX payment payload. The token is a
// display/reference string only; it is never verified against any payment
// network.
package pix

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	merchantName = "ClicLeitura"
	merchantCity = "Sao_Paulo"
)

// Generate builds the textual payment payload embedding the amount and the
// recipient identity in the fixed BR-code-like layout the storefront shows
// to buyers. Pure; no failure modes.
func Generate(amount decimal.Decimal, recipient string) string {
	return fmt.Sprintf(
		"00020126580014BR.GOV.BCB.PIX0136%s520400005303986540%s5802BR5911%s6009%s62070503***6304",
		recipient, amount.StringFixed(2), merchantName, merchantCity)
}

// Ref is the settlement reference stored on the order once a payload has been
// generated for it.
func Ref(orderID int64) string {
	return fmt.Sprintf("SIMULADO_%d", orderID)
}
