package checkout

// State is a stage of a checkout pass.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateSubmittingOrders
	StateCreatingPayment
	StateRedirecting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateSubmittingOrders:
		return "submitting_orders"
	case StateCreatingPayment:
		return "creating_payment"
	case StateRedirecting:
		return "redirecting"
	default:
		return "unknown"
	}
}
