package policy

import "fmt"

// TransactionID identifies one in-flight or recently closed host-call group.
type TransactionID int

// EventKind distinguishes the events a policy observes.
type EventKind int

const (
	// EventHostCall is emitted for every host-call step before it is buffered.
	EventHostCall EventKind = iota + 1
	// EventReset is emitted right after the buffer was sealed.
	EventReset
)

// Event is what the engine tells the policy.
type Event struct {
	Kind EventKind
	Op   int // operation code, EventHostCall only
}

// HostCallEvent builds the event for a host-call step with the given op code.
func HostCallEvent(op int) Event {
	return Event{Kind: EventHostCall, Op: op}
}

// ResetEvent builds the event sent after a seal.
func ResetEvent() Event {
	return Event{Kind: EventReset}
}

func (e Event) String() string {
	switch e.Kind {
	case EventHostCall:
		return fmt.Sprintf("HostCall(%d)", e.Op)
	case EventReset:
		return "Reset"
	default:
		return fmt.Sprintf("Event(%d)", int(e.Kind))
	}
}

// CommandKind tells the engine what to do with the entry being inserted.
type CommandKind int

const (
	// CommandNoop admits the entry without bookkeeping changes.
	CommandNoop CommandKind = iota
	// CommandStart opens transaction ID at the entry.
	CommandStart
	// CommandCommit closes transaction ID after the entry.
	CommandCommit
	// CommandAbort asks for a seal and a retry of the same entry.
	CommandAbort
	// CommandCommitAndAbort closes ID and forces a seal before the next host call.
	CommandCommitAndAbort
)

var commandNames = map[CommandKind]string{
	CommandNoop:           "Noop",
	CommandStart:          "Start",
	CommandCommit:         "Commit",
	CommandAbort:          "Abort",
	CommandCommitAndAbort: "CommitAndAbort",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// Command is a policy answer. ID and Lazy are meaningful for Start, Commit
// and CommitAndAbort only.
type Command struct {
	Kind CommandKind
	ID   TransactionID
	Lazy bool
}

// Noop admits the entry.
func Noop() Command { return Command{Kind: CommandNoop} }

// Start opens transaction id.
func Start(id TransactionID) Command { return Command{Kind: CommandStart, ID: id} }

// Commit closes transaction id. A lazy commit may still be rolled back by a
// later seal until a following commit of the same id retires it.
func Commit(id TransactionID, lazy bool) Command {
	return Command{Kind: CommandCommit, ID: id, Lazy: lazy}
}

// Abort rejects the entry for the current buffer.
func Abort() Command { return Command{Kind: CommandAbort} }

// CommitAndAbort closes id and marks the buffer full.
func CommitAndAbort(id TransactionID, lazy bool) Command {
	return Command{Kind: CommandCommitAndAbort, ID: id, Lazy: lazy}
}

func (c Command) String() string {
	switch c.Kind {
	case CommandStart:
		return fmt.Sprintf("Start(%d)", c.ID)
	case CommandCommit, CommandCommitAndAbort:
		return fmt.Sprintf("%s(%d, lazy=%t)", c.Kind, c.ID, c.Lazy)
	default:
		return c.Kind.String()
	}
}

// Policy decides, per host-call step, whether the in-flight group still
// fits the current slice.
//
// Notify must depend only on the policy's own state and the event. On
// EventReset every per-family counter returns to its initial state and the
// answer must be Noop.
type Policy interface {
	Notify(ev Event) Command
}

// NoopPolicy admits every entry. With it the engine cuts purely on capacity.
type NoopPolicy struct{}

// Notify always answers Noop.
func (NoopPolicy) Notify(Event) Command { return Noop() }
