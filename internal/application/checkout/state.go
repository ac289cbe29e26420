package checkout

// SubmissionState is the state of an order submission pipeline
type SubmissionState string

const (
	StateIdle            SubmissionState = "idle"
	StateSubmitting      SubmissionState = "submitting"
	StateHeaderPersisted SubmissionState = "header_persisted"
	StateItemsPersisted  SubmissionState = "items_persisted"
	StateCompleted       SubmissionState = "completed"
	StateAwaitingPayment SubmissionState = "awaiting_payment"
	StateFailed          SubmissionState = "failed"
)

// String returns the string representation of SubmissionState
func (s SubmissionState) String() string {
	return string(s)
}

// IsBusy reports whether a submission is in progress
func (s SubmissionState) IsBusy() bool {
	switch s {
	case StateSubmitting, StateHeaderPersisted, StateItemsPersisted:
		return true
	}
	return false
}

// AcceptsSubmit reports whether a new submission may start
func (s SubmissionState) AcceptsSubmit() bool {
	return s == StateIdle || s == StateFailed
}

// CanTransitionTo checks if the pipeline can move to target
func (s SubmissionState) CanTransitionTo(target SubmissionState) bool {
	switch s {
	case StateIdle, StateFailed:
		return target == StateSubmitting || target == StateIdle
	case StateSubmitting:
		// a resumed submission skips straight to its outcome
		return target == StateHeaderPersisted || target == StateFailed ||
			target == StateCompleted || target == StateAwaitingPayment || target == StateIdle
	case StateHeaderPersisted:
		return target == StateItemsPersisted || target == StateFailed
	case StateItemsPersisted:
		return target == StateCompleted || target == StateAwaitingPayment || target == StateFailed
	case StateAwaitingPayment:
		return target == StateCompleted || target == StateIdle
	case StateCompleted:
		return target == StateIdle
	}
	return false
}

// GateState is the state of a payment confirmation gate
type GateState string

const (
	GateIdle             GateState = "idle"
	GateQRDisplayed      GateState = "qr_displayed"
	GateConfirmedLocally GateState = "confirmed_locally"
	GateAbandoned        GateState = "abandoned"
)

// String returns the string representation of GateState
func (s GateState) String() string {
	return string(s)
}

// IsTerminal returns true if the gate can no longer change state
func (s GateState) IsTerminal() bool {
	return s == GateConfirmedLocally || s == GateAbandoned
}
