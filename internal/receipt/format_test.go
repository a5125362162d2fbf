package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDateTimeAcceptsBackendLayouts(t *testing.T) {
	assert.Equal(t, "10/06/2026 21:00", formatDateTime("2026-06-10T21:00:00"))
	assert.Equal(t, "10/06/2026 21:00", formatDateTime("2026-06-10T21:00"))
	assert.Equal(t, "10/06/2026 21:00", formatDateTime("2026-06-10T21:00:00Z"))
}

func TestFormatDateTimeFallsBackToRawValue(t *testing.T) {
	assert.Equal(t, "pronto", formatDateTime("pronto"))
	assert.Equal(t, "", formatDateTime(""))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "25.00 €", formatPrice(25))
	assert.Equal(t, "9.50 €", formatPrice(9.5))
}
