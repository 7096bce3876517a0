package person

import (
	"context"
	"strings"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// Person is a historical person referenced by manuscripts through role
// assignments. Manuscripts (inverse references) are populated only at the
// full tier.
type Person struct {
	entity.Base
	FirstName   string       `json:"first_name,omitempty"`
	LastName    string       `json:"last_name,omitempty"`
	Description string       `json:"description,omitempty"`
	Manuscripts []entity.Ref `json:"manuscripts,omitempty"`
}

func (p *Person) EntityKind() entity.Kind { return entity.KindPerson }

func (p *Person) Label() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Description
	}
	return name
}

type CreateDTO struct {
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Description    string  `json:"description"`
	Public         *bool   `json:"public"`
	PublicComment  string  `json:"public_comment"`
	PrivateComment string  `json:"private_comment"`
	ManagementIDs  []int64 `json:"management_ids"`
}

func (d *CreateDTO) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" &&
		strings.TrimSpace(d.LastName) == "" &&
		strings.TrimSpace(d.Description) == "" {
		return serrors.NewBadRequest("person needs a first name, last name or description")
	}
	return nil
}

type UpdateDTO struct {
	FirstName      *string  `json:"first_name"`
	LastName       *string  `json:"last_name"`
	Description    *string  `json:"description"`
	Public         *bool    `json:"public"`
	PublicComment  *string  `json:"public_comment"`
	PrivateComment *string  `json:"private_comment"`
	ManagementIDs  *[]int64 `json:"management_ids"`
}

type Repository interface {
	LoadMini(ctx context.Context, ids []int64) (map[int64]*Person, error)
	LoadShort(ctx context.Context, ids []int64) (map[int64]*Person, error)
	LoadFull(ctx context.Context, id int64) (*Person, error)
	ListIDs(ctx context.Context) ([]int64, error)

	Create(ctx context.Context, dto *CreateDTO) (int64, error)
	Update(ctx context.Context, id int64, patch *UpdateDTO, changes *entity.ChangeSet) error
	Delete(ctx context.Context, id int64) error
}
