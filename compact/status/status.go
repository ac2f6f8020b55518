// Package status defines the four return codes every compaction entry
// point reports (spec.md §6): Skipped, Continue, Partial, Complete. It is
// split out of the zone and core packages because both need the same
// vocabulary without importing each other.
package status

// Status is a compaction run's outcome.
type Status int

const (
	// Skipped means preflight rejected the run: insufficient free
	// memory, insufficient fragmentation, a deferred zone, or
	// disallowed request flags.
	Skipped Status = iota
	// Continue means the run should proceed (or, mid-run, that more
	// work remains and watermarks are not yet satisfied).
	Continue
	// Partial covers every abort-with-progress outcome: a fatal
	// signal, async lock contention, migration ENOMEM, or a
	// successful capture.
	Partial
	// Complete means the cursors met: the whole zone was scanned.
	Complete
)

func (s Status) String() string {
	switch s {
	case Skipped:
		return "skipped"
	case Continue:
		return "continue"
	case Partial:
		return "partial"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}
