package operator

import "context"

// Repository defines read access to the audience membership source plus the
// system-account provisioning hook. Operator CRUD itself lives in the
// back-office screens and is out of scope here.
type Repository interface {
	// ListActiveOptedIn returns active operators whose notification opt-in
	// flag is true (or whose legacy equivalent defaults to true).
	ListActiveOptedIn(ctx context.Context) ([]*Operator, error)
	// FirstByRole returns an active, opted-in operator with the given role.
	FirstByRole(ctx context.Context, role string) (*Operator, error)
	// FirstAlertRecipient returns any active operator flagged as an alert
	// recipient, used as the fallback for expiry reminders.
	FirstAlertRecipient(ctx context.Context) (*Operator, error)
	// EnsureSystemAccount returns the reserved sender account, creating it
	// if the row does not exist yet. Called once during startup wiring.
	EnsureSystemAccount(ctx context.Context) (*Operator, error)
}
