package entity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Revision is one immutable audit record of an entity mutation. Exactly one
// of Old/New is nil on create and delete; both are set on update. Revisions
// are appended inside the same transaction as the mutation they describe and
// are never modified afterwards.
type Revision struct {
	ID        int64
	Kind      Kind
	EntityID  int64
	ActorID   uuid.UUID
	Old       json.RawMessage
	New       json.RawMessage
	CreatedAt time.Time
}

type RevisionFindParams struct {
	Kind     Kind
	EntityID int64
	Limit    int
	Offset   int
}

type RevisionRepository interface {
	Create(ctx context.Context, rev *Revision) error
	List(ctx context.Context, params *RevisionFindParams) ([]*Revision, error)
	Count(ctx context.Context, params *RevisionFindParams) (int64, error)
}
