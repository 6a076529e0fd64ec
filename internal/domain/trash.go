package domain

import "time"

// TrashEntry is a recoverable snapshot of a deleted operation.
type TrashEntry struct {
	DeletedAt           time.Time
	RestoredAt          *time.Time
	RestoredOperationID *int64
	Operation           Operation
	DeletedBy           Actor
	RestoredBy          Actor
	ID                  string
	DeletionRequestID   int64
	Restored            bool
}

// NewTrashEntry snapshots op as the terminal effect of an agent-approved request.
func NewTrashEntry(id string, op *Operation, req *DeletionRequest, by Actor, at time.Time) (*TrashEntry, error) {
	if req.Status != DeletionStatusAgentApproved {
		return nil, ErrInvalidTransition
	}
	return &TrashEntry{
		ID:                id,
		Operation:         *op.Clone(),
		DeletionRequestID: req.ID,
		DeletedBy:         by,
		DeletedAt:         at,
	}, nil
}

// RestoredOperation builds the operation to re-insert. It never reuses the
// original numeric identity; the store assigns a fresh one.
func (e *TrashEntry) RestoredOperation(by Actor, at time.Time) (*Operation, error) {
	if e.Restored {
		return nil, ErrAlreadyRestored
	}
	op := e.Operation.Clone()
	op.ID = 0
	op.Version = 0
	op.Touch(at, by.Name)
	return op, nil
}

// MarkRestored records the restoration bookkeeping.
func (e *TrashEntry) MarkRestored(by Actor, newOperationID int64, at time.Time) error {
	if e.Restored {
		return ErrAlreadyRestored
	}
	e.Restored = true
	e.RestoredBy = by
	e.RestoredAt = &at
	e.RestoredOperationID = &newOperationID
	return nil
}
