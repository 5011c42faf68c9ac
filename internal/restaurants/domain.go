// Package restaurants exposes the tenant records the auth core scopes to.
// The full restaurant CRUD lives elsewhere; auth only needs lookups.
package restaurants

import (
	"fmt"

	"golang.org/x/text/currency"
)

// Restaurant is the tenant record embedded into token claims.
type Restaurant struct {
	ID       string
	Name     string
	Slug     string
	OwnerID  string
	IsActive bool
	Timezone string
	Currency string
}

// ValidateCurrency rejects records whose currency is not a known ISO 4217
// code before they can enter a token claim set.
func ValidateCurrency(code string) error {
	if _, err := currency.ParseISO(code); err != nil {
		return fmt.Errorf("restaurants: currency %q: %w", code, err)
	}
	return nil
}
