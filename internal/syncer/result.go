package syncer

import "github.com/shopspring/decimal"

// State is a step of a single account sync.
type State string

const (
	StateIdle            State = "idle"
	StateCredentialCheck State = "credential_check"
	StateFetching        State = "fetching"
	StateNormalizing     State = "normalizing"
	StateReconciling     State = "reconciling"
	StateLogging         State = "logging"
	StateDone            State = "done"
	StateErrored         State = "errored"
)

// Outcome labels the sync.total metric.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeDisconnected Outcome = "disconnected"
	OutcomeFailed       Outcome = "failed"
	OutcomeConflict     Outcome = "conflict"
	OutcomeNotFound     Outcome = "not_found"
)

// Result describes one sync attempt. Err is the same error Sync returns.
// Disconnected is set when an auth failure cleared the credentials.
type Result struct {
	AccountID    string          `json:"account_id"`
	State        State           `json:"state"`
	Transitions  []State         `json:"transitions"`
	Inserted     int             `json:"inserted"`
	Updated      int             `json:"updated"`
	Deleted      int             `json:"deleted"`
	Unchanged    int             `json:"unchanged"`
	Balance      decimal.Decimal `json:"balance"`
	Disconnected bool            `json:"disconnected"`
	Err          error           `json:"-"`
}

func newResult(accountID string) *Result {
	return &Result{AccountID: accountID, State: StateIdle, Transitions: []State{StateIdle}}
}

func (r *Result) enter(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// fail moves to errored and records err.
func (r *Result) fail(err error) error {
	r.enter(StateErrored)
	r.Err = err
	return err
}

// Succeeded reports whether the sync reached done.
func (r *Result) Succeeded() bool {
	return r.State == StateDone
}
