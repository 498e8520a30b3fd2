package batch

import odatajson "github.com/reoring/odatajson"

// State is a position in the batch writer's lifecycle.
type State int

const (
	Start State = iota
	BatchStarted
	ChangesetStarted
	OperationCreated
	OperationStreamRequested
	OperationStreamDisposed
	ChangesetCompleted
	BatchCompleted
	// Faulted is entered after any failed call; every later call fails.
	Faulted
)

func (s State) String() string {
	switch s {
	case Start:
		return "Start"
	case BatchStarted:
		return "BatchStarted"
	case ChangesetStarted:
		return "ChangesetStarted"
	case OperationCreated:
		return "OperationCreated"
	case OperationStreamRequested:
		return "OperationStreamRequested"
	case OperationStreamDisposed:
		return "OperationStreamDisposed"
	case ChangesetCompleted:
		return "ChangesetCompleted"
	case BatchCompleted:
		return "BatchCompleted"
	case Faulted:
		return "Faulted"
	}
	return "Unknown"
}

var legal = map[State][]State{
	Start:                    {BatchStarted},
	BatchStarted:             {ChangesetStarted, OperationCreated, BatchCompleted},
	ChangesetStarted:         {OperationCreated, ChangesetCompleted},
	OperationCreated:         {OperationCreated, OperationStreamRequested, ChangesetStarted, ChangesetCompleted, BatchCompleted},
	OperationStreamRequested: {OperationStreamDisposed},
	OperationStreamDisposed:  {OperationCreated, ChangesetStarted, ChangesetCompleted, BatchCompleted},
	ChangesetCompleted:       {ChangesetStarted, OperationCreated, BatchCompleted},
}

// checkTransition validates from -> to. group is the id of the open
// changeset, or "" outside one. It performs no I/O.
func checkTransition(from, to State, group string) error {
	inChangeset := group != ""
	switch {
	case from == Faulted:
		return odatajson.NewError(odatajson.CodeWriterFaulted)
	case from == OperationStreamRequested && to != OperationStreamDisposed:
		return odatajson.NewError(odatajson.CodeStreamNotDisposed)
	case to == ChangesetStarted && inChangeset:
		return odatajson.NewError(odatajson.CodeNestedChangeset, "group", group)
	case to == ChangesetCompleted && !inChangeset:
		return odatajson.NewError(odatajson.CodeNoChangeset)
	case to == BatchCompleted && inChangeset:
		return odatajson.NewError(odatajson.CodeChangesetNotEnded, "group", group)
	}
	for _, s := range legal[from] {
		if s == to {
			return nil
		}
	}
	return odatajson.NewError(odatajson.CodeInvalidTransition, "from", from.String(), "to", to.String())
}
