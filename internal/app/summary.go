package app

// RunSummary is the structured result of one engine invocation. Partial
// failures are reported through the counters; only fatal error classes
// (configuration, store, missing recipient) surface as errors instead.
type RunSummary struct {
	// Future counts qualifying entities whose effective date is strictly
	// after the invocation's local day.
	Future int `json:"future"`
	// Sent counts confirmed successful dispatches.
	Sent int `json:"sent"`
	// Skipped counts reminders whose ledger claim lost to an earlier
	// invocation.
	Skipped int `json:"skipped"`
	// Failures counts per-recipient delivery failures in fan-out contexts.
	Failures int `json:"failures"`
}
