package restaurants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCurrency(t *testing.T) {
	for _, code := range []string{"MYR", "USD", "SGD", "EUR"} {
		assert.NoError(t, ValidateCurrency(code), code)
	}
	for _, code := range []string{"", "RINGGIT", "MY", "my$"} {
		assert.Error(t, ValidateCurrency(code), code)
	}
}
