package lifecycle

import (
	"fmt"

	"civicsync-issues/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentDecision is the change the guard permits for an assignment request.
type AssignmentDecision struct {
	Direction Direction
	// Next is the new holder of the slot, nil when vacating it.
	Next *primitive.ObjectID
}

// AuthorizeAssignment decides whether caller may change slot of issue to
// target. A nil target is an explicit release. Rules, in order:
//
//  0. a solved issue accepts no assignment changes
//  1. the reporter is never a valid target
//  2. a slot held by someone other than the caller cannot be touched
//  3. a slot held by the caller is released, whatever the target
//  4. an empty slot is filled with target
//
// The function has no side effects; the caller persists the decision.
func AuthorizeAssignment(caller models.Caller, issue *models.Issue, slot models.AssignmentSlot, target *primitive.ObjectID) (AssignmentDecision, error) {
	if issue.Status == models.StatusSolved {
		return AssignmentDecision{}, fmt.Errorf("%w: %s", ErrAlreadySolved, issue.ID.Hex())
	}

	if target != nil && *target == issue.ReporterID {
		return AssignmentDecision{}, fmt.Errorf("%w: user %s reported issue %s",
			ErrSelfAssignment, target.Hex(), issue.ID.Hex())
	}

	holder := issue.Holder(slot)
	if holder != nil && *holder != caller.UserID {
		return AssignmentDecision{}, fmt.Errorf("%w: %s of issue %s is held by %s",
			ErrNotAuthorized, slot, issue.ID.Hex(), holder.Hex())
	}

	if holder != nil {
		return AssignmentDecision{Direction: Unassign}, nil
	}

	if target == nil {
		return AssignmentDecision{}, fmt.Errorf("%w: %s of issue %s is not assigned",
			ErrNotAuthorized, slot, issue.ID.Hex())
	}

	next := *target
	return AssignmentDecision{Direction: Assign, Next: &next}, nil
}

// AuthorizeSolve allows only the reporter to resolve an issue that is not yet solved.
func AuthorizeSolve(caller models.Caller, issue *models.Issue) error {
	if caller.UserID != issue.ReporterID {
		return fmt.Errorf("%w: only the reporter can solve issue %s", ErrNotAuthorized, issue.ID.Hex())
	}
	if issue.Status == models.StatusSolved {
		return fmt.Errorf("%w: %s", ErrAlreadySolved, issue.ID.Hex())
	}
	return nil
}
