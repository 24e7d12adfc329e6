package lifecycle

import (
	"fmt"

	"civicsync-issues/models"
)

// Direction says whether an assignment slot is being filled or vacated.
type Direction int

const (
	Assign Direction = iota + 1
	Unassign
)

func (d Direction) String() string {
	switch d {
	case Assign:
		return "assign"
	case Unassign:
		return "unassign"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

type transitionKey struct {
	slot      models.AssignmentSlot
	direction Direction
}

// transitions maps an assignment change to the status it produces. Vacating a
// slot returns to the status that waits for someone to take that slot.
var transitions = map[transitionKey]models.IssueStatus{
	{models.SlotFiscal, Assign}:    models.StatusWaitingForManager,
	{models.SlotFiscal, Unassign}:  models.StatusWaitingForFiscal,
	{models.SlotManager, Assign}:   models.StatusWaitingForManagerAction,
	{models.SlotManager, Unassign}: models.StatusWaitingForManager,
}

// InitialStatus is the status of every newly created issue.
const InitialStatus = models.StatusWaitingForFiscal

// NextStatus returns the status produced by changing slot in direction.
func NextStatus(slot models.AssignmentSlot, direction Direction) (models.IssueStatus, error) {
	status, ok := transitions[transitionKey{slot, direction}]
	if !ok {
		return "", fmt.Errorf("%w: no transition for %s %s", ErrInvalidField, direction, slot)
	}
	return status, nil
}
