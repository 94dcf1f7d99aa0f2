package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrInProgress is returned when a pass is already running.
	ErrInProgress = errors.New("checkout already in progress")

	// ErrNoSelection indicates no cart line matched the selection.
	ErrNoSelection = errors.New("no items selected")

	// ErrInvalidUser indicates a missing or non-positive user id.
	ErrInvalidUser = errors.New("a valid user id is required")

	// ErrOrdersRejected indicates that no order was created.
	ErrOrdersRejected = errors.New("order submission failed")

	// ErrPaymentFailed indicates the payment request itself failed.
	ErrPaymentFailed = errors.New("payment creation failed")

	// ErrNoPaymentDestination indicates a payment response with neither a
	// URL nor a payment reference.
	ErrNoPaymentDestination = errors.New("payment session has no usable destination")

	// ErrNavigation indicates the navigator could not open the destination.
	ErrNavigation = errors.New("navigation failed")
)

// Error reports a failed pass.
//
// Reason is one of the package's sentinel errors and Err, when set, is the
// underlying cause (usually an *api.Error). Both are reachable through
// errors.Is and errors.As.
type Error struct {
	// Stage is the state the pass failed in.
	Stage State

	// Message is the text to show the user.
	Message string

	// Reason classifies the failure.
	Reason error

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("checkout failed while %s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Reason != nil {
		errs = append(errs, e.Reason)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsValidation reports whether err is a client-side validation failure,
// raised before any request was sent.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoSelection) || errors.Is(err, ErrInvalidUser)
}

// OrdersCreated reports whether err happened after orders were created,
// in which case the user must not be asked to submit again.
func OrdersCreated(err error) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Stage == StateCreatingPayment || ce.Stage == StateRedirecting
}

// UserMessage returns the text to show for err.
func UserMessage(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}
