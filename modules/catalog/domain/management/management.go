package management

import (
	"context"
	"strings"
	"time"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// Management is a curation tag. Unlike the heavier kinds it has no comments
// or identifiers; mini and short projections coincide.
type Management struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created,omitzero"`
	Modified time.Time `json:"modified,omitzero"`
}

func (m *Management) EntityID() int64         { return m.ID }
func (m *Management) EntityKind() entity.Kind { return entity.KindManagement }
func (m *Management) Label() string           { return m.Name }

type CreateDTO struct {
	Name string `json:"name"`
}

func (d *CreateDTO) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return serrors.NewBadRequest("management name is required")
	}
	return nil
}

type UpdateDTO struct {
	Name *string `json:"name"`
}

type Repository interface {
	LoadMini(ctx context.Context, ids []int64) (map[int64]*Management, error)
	LoadShort(ctx context.Context, ids []int64) (map[int64]*Management, error)
	LoadFull(ctx context.Context, id int64) (*Management, error)
	ListIDs(ctx context.Context) ([]int64, error)

	Create(ctx context.Context, dto *CreateDTO) (int64, error)
	Update(ctx context.Context, id int64, patch *UpdateDTO, changes *entity.ChangeSet) error
	Delete(ctx context.Context, id int64) error

	// TaggedRefs lists every entity, across kinds, carrying this tag.
	TaggedRefs(ctx context.Context, id int64) ([]entity.Ref, error)
	// RewriteRefs retags every entity from one tag to another without
	// producing duplicate assignments. Returns the touched refs.
	RewriteRefs(ctx context.Context, from, to int64) ([]entity.Ref, error)
}
