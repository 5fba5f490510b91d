package email

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTemplateRendersNotice(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 2525, From: "finance@encore.local"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		assert.Nil(t, a)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"jane@example.com"}, "finance_notice", map[string]any{
		"subject":   "Payment approved",
		"name":      "Jane",
		"message":   "Your payment has been approved.",
		"reference": "INV-1700000000000",
	})
	require.NoError(t, err)

	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "finance@encore.local", gotFrom)
	assert.Equal(t, []string{"jane@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Payment approved")
	assert.Contains(t, gotMsg, "Hello Jane,")
	assert.Contains(t, gotMsg, "Reference: INV-1700000000000")
}

func TestSendRequiresRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "mail.local", Port: 25})
	err := p.Send(context.Background(), nil, "s", "b")
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}
