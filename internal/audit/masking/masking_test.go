package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                    "",
		"abc":                 "****",
		"0812345678":          "****5678",
		"jane@example.com":    "****@example.com",
		"  jane@example.com ": "****@example.com",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskSecret(in), in)
	}
}

func TestMaskFields(t *testing.T) {
	in := map[string]any{
		"email":  "jane@example.com",
		"amount": "150.00",
		"details": map[string]any{
			"contact":  "0812345678",
			"ticketId": "T-1",
		},
	}
	out := MaskFields(in, "email", "contact")

	assert.Equal(t, "****@example.com", out["email"])
	assert.Equal(t, "150.00", out["amount"])
	nested := out["details"].(map[string]any)
	assert.Equal(t, "****5678", nested["contact"])
	assert.Equal(t, "T-1", nested["ticketId"])

	// Input is untouched.
	assert.Equal(t, "jane@example.com", in["email"])
	assert.Nil(t, MaskFields(nil, "email"))
}
