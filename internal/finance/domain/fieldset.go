package domain

import (
	"strings"

	"gorm.io/datatypes"
)

// FieldSet parameterizes the payment orchestrator: which auxiliary fields a payment carries
// and, when DefaultFor is set, the purpose assumed when the request omits one.
type FieldSet struct {
	Name       string
	Keys       []string
	DefaultFor PaymentFor
}

var (
	MerchandiseFields = FieldSet{
		Name: "merchandise",
		Keys: []string{"productId", "productName", "quantity", "orderId"},
	}
	TicketFields = FieldSet{
		Name:       "ticket",
		Keys:       []string{"ticketId", "ticketName", "fullName", "email", "contact"},
		DefaultFor: PaymentForTicket,
	}
)

// Extract keeps the non-empty values of the set's keys. Unknown keys are dropped.
func (f FieldSet) Extract(values map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for _, key := range f.Keys {
		if v := strings.TrimSpace(values[key]); v != "" {
			out[key] = v
		}
	}
	return out
}
