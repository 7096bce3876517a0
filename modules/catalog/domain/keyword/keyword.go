package keyword

import (
	"context"
	"strings"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// Keyword is one node of the self-referential content taxonomy. Parent is
// populated from the short tier on; Children only at the full tier.
type Keyword struct {
	entity.Base
	Name     string     `json:"name"`
	ParentID *int64     `json:"parent_id,omitempty"`
	Parent   *Keyword   `json:"parent,omitempty"`
	Children []*Keyword `json:"children,omitempty"`
}

func (k *Keyword) EntityKind() entity.Kind { return entity.KindKeyword }

func (k *Keyword) Label() string { return k.Name }

type CreateDTO struct {
	Name           string  `json:"name"`
	ParentID       *int64  `json:"parent_id"`
	Public         *bool   `json:"public"`
	PublicComment  string  `json:"public_comment"`
	PrivateComment string  `json:"private_comment"`
	ManagementIDs  []int64 `json:"management_ids"`
}

func (d *CreateDTO) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return serrors.NewBadRequest("keyword name is required")
	}
	return nil
}

// UpdateDTO is a patch: nil pointers mean the field is absent from the
// patch. Applying a patch with no recognized field set is a bad request.
type UpdateDTO struct {
	Name           *string  `json:"name"`
	ParentID       *int64   `json:"parent_id"`
	ClearParent    bool     `json:"clear_parent"`
	Public         *bool    `json:"public"`
	PublicComment  *string  `json:"public_comment"`
	PrivateComment *string  `json:"private_comment"`
	ManagementIDs  *[]int64 `json:"management_ids"`
}

type Repository interface {
	LoadMini(ctx context.Context, ids []int64) (map[int64]*Keyword, error)
	LoadShort(ctx context.Context, ids []int64) (map[int64]*Keyword, error)
	LoadFull(ctx context.Context, id int64) (*Keyword, error)
	ListIDs(ctx context.Context) ([]int64, error)

	Create(ctx context.Context, dto *CreateDTO) (int64, error)
	Update(ctx context.Context, id int64, patch *UpdateDTO, changes *entity.ChangeSet) error
	Delete(ctx context.Context, id int64) error

	// ChildIDs returns direct children; DescendantIDs walks the whole
	// subtree (cycle-safe, excludes the root itself).
	ChildIDs(ctx context.Context, id int64) ([]int64, error)
	DescendantIDs(ctx context.Context, id int64) ([]int64, error)

	// ReparentChildren moves every direct child of `from` under `to`,
	// skipping the ids in `exclude`. Returns the moved child ids.
	ReparentChildren(ctx context.Context, from, to int64, exclude []int64) ([]int64, error)
}
