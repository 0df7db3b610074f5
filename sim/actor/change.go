package actor

// ChangeKind is the closed set of change request variants.
type ChangeKind int

const (
	// ChangeMutation runs an arbitrary closure against the model.
	ChangeMutation ChangeKind = iota

	// ChangeModeTransition commits a mode transition of a modal model.
	ChangeModeTransition

	// ChangeRemoveActor detaches an actor and cancels its pending firings.
	ChangeRemoveActor
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeMutation:
		return "mutation"
	case ChangeModeTransition:
		return "mode transition"
	case ChangeRemoveActor:
		return "remove actor"
	default:
		return "unknown"
	}
}

// A Committer applies a structural change.
type Committer interface {
	Commit() error
}

// ChangeRequest is a command queued to the execution manager. Requests run
// strictly between iterations, in the order they were queued. Running a
// request a second time has no effect.
type ChangeRequest struct {
	ID   string
	Kind ChangeKind

	// Source is the full name of whoever queued the request.
	Source      string
	Description string

	// Key deduplicates requests: of several queued requests with the same
	// non-empty key, only the first runs.
	Key string

	// Mutate is used by ChangeMutation.
	Mutate func() error

	// Transition and Target are used by ChangeModeTransition. Target names
	// the modal model. The limit of one committed transition between two
	// iterations is per modal model: transitions of different modal models
	// chosen in the same iteration all commit.
	Transition Committer
	Target     string

	// Actor is used by ChangeRemoveActor.
	Actor Actor

	// Discarded, if set, is called when the request is dropped without
	// running.
	Discarded func()
}

// ChangeRequester accepts change requests.
type ChangeRequester interface {
	RequestChange(req ChangeRequest)
}
