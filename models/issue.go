package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueStatus enum. The string values are part of the wire contract.
type IssueStatus string

const (
	StatusOpen                       IssueStatus = "Open"
	StatusWaitingForFiscal           IssueStatus = "Waiting for fiscal"
	StatusWaitingForManager          IssueStatus = "Waiting for manager"
	StatusWaitingForManagerAction    IssueStatus = "Waiting for manager action"
	StatusWaitingForReporterResponse IssueStatus = "Waiting for reporter response"
	StatusSolved                     IssueStatus = "Solved"
)

// Valid reports whether s is one of the declared statuses.
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusWaitingForFiscal, StatusWaitingForManager,
		StatusWaitingForManagerAction, StatusWaitingForReporterResponse, StatusSolved:
		return true
	}
	return false
}

// AssignmentSlot identifies one of the two assignment fields of an issue.
type AssignmentSlot int

const (
	SlotFiscal AssignmentSlot = iota + 1
	SlotManager
)

// ParseAssignmentSlot maps the wire field name to a slot.
func ParseAssignmentSlot(field string) (AssignmentSlot, error) {
	switch field {
	case "fiscalId":
		return SlotFiscal, nil
	case "managerId":
		return SlotManager, nil
	}
	return 0, fmt.Errorf("unknown assignment field %q", field)
}

// Field returns the document field backing the slot.
func (s AssignmentSlot) Field() string {
	switch s {
	case SlotFiscal:
		return "fiscalId"
	case SlotManager:
		return "managerId"
	}
	return ""
}

func (s AssignmentSlot) String() string {
	switch s {
	case SlotFiscal:
		return "fiscal"
	case SlotManager:
		return "manager"
	}
	return fmt.Sprintf("slot(%d)", int(s))
}

// Issue represents a problem reported by a resident of a city
type Issue struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	CityID      primitive.ObjectID  `bson:"cityId" json:"cityId"`
	Latitude    float64             `bson:"latitude" json:"latitude"`
	Longitude   float64             `bson:"longitude" json:"longitude"`
	Category    string              `bson:"category" json:"category"`
	Description string              `bson:"description" json:"description"`
	Date        time.Time           `bson:"date" json:"date"`
	ReporterID  primitive.ObjectID  `bson:"reporterId" json:"reporterId"`
	FiscalID    *primitive.ObjectID `bson:"fiscalId" json:"fiscalId"`
	ManagerID   *primitive.ObjectID `bson:"managerId" json:"managerId"`
	Status      IssueStatus         `bson:"status" json:"status"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Holder returns the user currently assigned to slot, or nil.
func (i *Issue) Holder(slot AssignmentSlot) *primitive.ObjectID {
	switch slot {
	case SlotFiscal:
		return i.FiscalID
	case SlotManager:
		return i.ManagerID
	}
	return nil
}

// SetHolder replaces the user assigned to slot.
func (i *Issue) SetHolder(slot AssignmentSlot, user *primitive.ObjectID) {
	switch slot {
	case SlotFiscal:
		i.FiscalID = user
	case SlotManager:
		i.ManagerID = user
	}
}

// Clone returns a deep copy so callers never share the assignment pointers.
func (i *Issue) Clone() *Issue {
	c := *i
	if i.FiscalID != nil {
		id := *i.FiscalID
		c.FiscalID = &id
	}
	if i.ManagerID != nil {
		id := *i.ManagerID
		c.ManagerID = &id
	}
	return &c
}

// SameUser compares two optional user references.
func SameUser(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
