package review

// Status classifies a commit for review purposes. It is derived on demand
// from the commit's annotation and metadata, never stored.
type Status int

const (
	// StatusNew is a commit nobody has looked at yet.
	StatusNew Status = iota
	// StatusReviewed carries at least one annotation.
	StatusReviewed
	// StatusCheckpoint carries the checkpoint marker; it bounds history walks.
	StatusCheckpoint
	// StatusOurs was authored by the local reviewer.
	StatusOurs
	// StatusMerge has more than one parent.
	StatusMerge
)

// CheckpointMarker is the sentinel annotation line that turns a commit into
// a walk boundary.
const CheckpointMarker = "checkpoint"

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusReviewed:
		return "reviewed"
	case StatusCheckpoint:
		return "checkpoint"
	case StatusOurs:
		return "ours"
	case StatusMerge:
		return "merge"
	default:
		return "unknown"
	}
}
