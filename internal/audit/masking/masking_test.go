package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j****@acme.com", MaskEmail("jane@acme.com"))
	assert.Equal(t, "****", MaskEmail("bad"))
	assert.Equal(t, "", MaskEmail(""))
}

func TestMaskMetadata(t *testing.T) {
	got := MaskMetadata(map[string]any{
		"email":     "ops@vendor.io",
		"name":      "Vendor Co",
		"file_name": "acme-coi-2025.pdf",
		"nested":    map[string]any{"insured_name": "Acme Holdings"},
		" ":         "dropped",
	})

	assert.Equal(t, "o****@vendor.io", got["email"])
	assert.Equal(t, "Vendor Co", got["name"])
	assert.Equal(t, "****.pdf", got["file_name"])
	assert.Equal(t, map[string]any{"insured_name": "****ings"}, got["nested"])
	assert.NotContains(t, got, " ")
	assert.Nil(t, MaskMetadata(nil))
}
