// Package index implements the search index driver on Redis. Documents are
// short projections serialized to JSON, one key per entity, plus one id set
// per kind so the whole corpus of a kind can be enumerated for resync.
package index

import (
	"context"
	"encoding/json"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
)

// Document is one indexed entity projection.
type Document struct {
	Kind entity.Kind
	ID   int64
	Body json.RawMessage
}

// Driver is the write surface of the search index. Deletes are idempotent:
// removing an id that is not indexed is not an error. Add and Update both
// overwrite; they stay separate methods because callers mean different
// things by them and a stricter backend may enforce the difference.
type Driver interface {
	Add(ctx context.Context, doc Document) error
	AddMultiple(ctx context.Context, docs []Document) error
	Update(ctx context.Context, doc Document) error
	UpdateMultiple(ctx context.Context, docs []Document) error
	Delete(ctx context.Context, kind entity.Kind, id int64) error
	DeleteMultiple(ctx context.Context, kind entity.Kind, ids []int64) error

	// IDs enumerates every indexed id of a kind.
	IDs(ctx context.Context, kind entity.Kind) ([]int64, error)
	// Get returns the indexed document body, or found=false.
	Get(ctx context.Context, kind entity.Kind, id int64) (json.RawMessage, bool, error)
}
