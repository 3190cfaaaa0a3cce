// AngelaMos | 2026
// errors.go

package purchase

import (
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/checkout-backend/internal/core"
)

var (
	ErrValidation                  = fmt.Errorf("purchase validation: %w", core.ErrInvalidInput)
	ErrProductUnavailable          = fmt.Errorf("product unavailable: %w", core.ErrConflict)
	ErrUnauthorized                = fmt.Errorf("purchase belongs to another user: %w", core.ErrForbidden)
	ErrPurchaseNotFound            = fmt.Errorf("purchase: %w", core.ErrNotFound)
	ErrPurchaseClosed              = fmt.Errorf("purchase is no longer pending: %w", core.ErrConflict)
	ErrPurchaseStillPending        = fmt.Errorf("purchase is still pending: %w", core.ErrConflict)
	ErrPaymentIntentCreationFailed = errors.New("payment intent creation failed")
	ErrManualVerifyDisabled        = fmt.Errorf("manual verification is disabled: %w", core.ErrForbidden)
)

// ProductUnavailableError names the products that blocked a checkout.
type ProductUnavailableError struct {
	ProductIDs []string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("products unavailable: %v", e.ProductIDs)
}

func (e *ProductUnavailableError) Unwrap() error {
	return ErrProductUnavailable
}
