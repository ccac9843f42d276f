package proxy

// StatusKind enumerates the six states from the lifecycle state
// machine. Terminated is internal: the Coordinator collapses it to
// Stopped before any external reader can observe it.
type StatusKind int

const (
	Stopped StatusKind = iota
	Starting
	Running
	Terminating
	Terminated
	Error
)

// String renders the kind the way it is reported over the Control API.
func (kind StatusKind) String() string {
	switch kind {
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Terminating:
		return "TERMINATING"
	case Terminated:
		return "TERMINATED"
	case Error:
		return "ERROR"
	default:
		return "STOPPED"
	}
}

// Status is the tagged-variant status value the Coordinator owns.
// Message is only meaningful when Kind is Error.
type Status struct {
	Kind    StatusKind
	Message string
}

// StoppedStatus is the zero/initial status.
var StoppedStatus = Status{Kind: Stopped}

func errorStatus(message string) Status {
	return Status{Kind: Error, Message: message}
}
