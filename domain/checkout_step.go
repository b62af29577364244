package domain

type CheckoutStep string

const (
	CheckoutStepCart         CheckoutStep = "cart"
	CheckoutStepShipping     CheckoutStep = "shipping"
	CheckoutStepPayment      CheckoutStep = "payment"
	CheckoutStepConfirmation CheckoutStep = "confirmation"
)

func ParseCheckoutStep(s string) (CheckoutStep, bool) {
	switch step := CheckoutStep(s); step {
	case CheckoutStepCart, CheckoutStepShipping, CheckoutStepPayment, CheckoutStepConfirmation:
		return step, true
	}
	return "", false
}

// IsTerminal reports whether the step ends the flow.
func (s CheckoutStep) IsTerminal() bool {
	return s == CheckoutStepConfirmation
}

// String representation (for logging)
func (s CheckoutStep) String() string {
	return string(s)
}

var transitions = map[CheckoutStep][]CheckoutStep{
	CheckoutStepCart:         {CheckoutStepShipping},
	CheckoutStepShipping:     {CheckoutStepCart, CheckoutStepPayment},
	CheckoutStepPayment:      {CheckoutStepShipping, CheckoutStepConfirmation},
	CheckoutStepConfirmation: {CheckoutStepCart},
}

// CanTransitionTo reports whether the step graph has an edge from -> to.
// Guards (validation, back confirmation, paid outcome) are applied by the caller.
// The reset to cart on an emptied cart bypasses this table.
func CanTransitionTo(from, to CheckoutStep) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Effect describes a side effect the UI layer performs when a transition happens.
type Effect string

const (
	EffectGuardHistory          Effect = "guard_history"
	EffectReleaseHistory        Effect = "release_history"
	EffectRestoreForwardHistory Effect = "restore_forward_history"
	EffectFocusField            Effect = "focus_field"
	EffectReconcileOrder        Effect = "reconcile_order"
	EffectRemoveGatewayOverlay  Effect = "remove_gateway_overlay"
	EffectScrollToTop           Effect = "scroll_to_top"
)

// FocusField is the focus effect targeting one form field.
func FocusField(field string) Effect {
	return Effect(string(EffectFocusField) + ":" + field)
}
