package checkout

import (
	"fmt"

	"github.com/fjod/storefront/internal/domain"
)

// Step is a stage of the checkout flow, in order.
type Step int

const (
	StepCart Step = iota
	StepShipping
	StepPayment
	StepPlaceOrder
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepPlaceOrder:
		return "place-order"
	default:
		return "unknown"
	}
}

func ParseStep(s string) (Step, error) {
	for step := StepCart; step <= StepPlaceOrder; step++ {
		if step.String() == s {
			return step, nil
		}
	}
	return StepCart, fmt.Errorf("%w: unknown checkout step %q", domain.ErrValidation, s)
}

// Decision is where the shopper ends up. When the target is refused,
// Redirected is set and Step is the screen that fills in the earliest
// missing piece: an empty cart goes back to Cart, a missing address to
// Shipping, a missing payment method to Payment.
type Decision struct {
	Step       Step
	Redirected bool
}

// admits reports whether the requirement for entering step holds on its own.
func admits(c domain.Cart, step Step) bool {
	switch step {
	case StepShipping:
		return !c.IsEmpty()
	case StepPayment:
		return c.HasShippingAddress()
	case StepPlaceOrder:
		return c.HasShippingAddress() && c.HasPaymentMethod()
	default:
		return true
	}
}

// Enter evaluates the gates up to target in order. It holds no state and is
// safe to call on every navigation attempt.
func Enter(c domain.Cart, target Step) Decision {
	if target < StepCart || target > StepPlaceOrder {
		return Decision{Step: StepCart, Redirected: true}
	}
	for step := StepShipping; step <= target; step++ {
		if !admits(c, step) {
			return Decision{Step: step - 1, Redirected: true}
		}
	}
	return Decision{Step: target}
}

func CanPlaceOrder(c domain.Cart) bool {
	return !Enter(c, StepPlaceOrder).Redirected
}
