package manuscript

import (
	"context"
	"strings"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// RoleAssignment links a person to a manuscript in a given capacity
// (scribe, patron, related). Person carries the mini projection.
type RoleAssignment struct {
	Role   string         `json:"role"`
	Person *person.Person `json:"person"`
}

// Manuscript is a physical codex. Contents (keyword minis) and Roles are
// populated from the short tier on; they are part of the index document.
type Manuscript struct {
	entity.Base
	City     string             `json:"city"`
	Library  string             `json:"library"`
	Shelf    string             `json:"shelf"`
	Date     string             `json:"date,omitempty"`
	Contents []*keyword.Keyword `json:"contents,omitempty"`
	Roles    []RoleAssignment   `json:"roles,omitempty"`
}

func (m *Manuscript) EntityKind() entity.Kind { return entity.KindManuscript }

func (m *Manuscript) Label() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.City, m.Library, m.Shelf} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, " - ")
}

type CreateDTO struct {
	City           string  `json:"city"`
	Library        string  `json:"library"`
	Shelf          string  `json:"shelf"`
	Date           string  `json:"date"`
	ContentIDs     []int64 `json:"content_ids"`
	Public         *bool   `json:"public"`
	PublicComment  string  `json:"public_comment"`
	PrivateComment string  `json:"private_comment"`
	ManagementIDs  []int64 `json:"management_ids"`
}

func (d *CreateDTO) Validate() error {
	if strings.TrimSpace(d.City) == "" || strings.TrimSpace(d.Library) == "" {
		return serrors.NewBadRequest("manuscript city and library are required")
	}
	return nil
}

type RoleDTO struct {
	Role     string `json:"role"`
	PersonID int64  `json:"person_id"`
}

type UpdateDTO struct {
	City           *string    `json:"city"`
	Library        *string    `json:"library"`
	Shelf          *string    `json:"shelf"`
	Date           *string    `json:"date"`
	ContentIDs     *[]int64   `json:"content_ids"`
	Roles          *[]RoleDTO `json:"roles"`
	Public         *bool      `json:"public"`
	PublicComment  *string    `json:"public_comment"`
	PrivateComment *string    `json:"private_comment"`
	ManagementIDs  *[]int64   `json:"management_ids"`
}

type Repository interface {
	LoadMini(ctx context.Context, ids []int64) (map[int64]*Manuscript, error)
	LoadShort(ctx context.Context, ids []int64) (map[int64]*Manuscript, error)
	LoadFull(ctx context.Context, id int64) (*Manuscript, error)
	ListIDs(ctx context.Context) ([]int64, error)

	Create(ctx context.Context, dto *CreateDTO) (int64, error)
	Update(ctx context.Context, id int64, patch *UpdateDTO, changes *entity.ChangeSet) error
	Delete(ctx context.Context, id int64) error

	// Dependency edges into this kind.
	IDsByKeyword(ctx context.Context, keywordID int64) ([]int64, error)
	IDsByPerson(ctx context.Context, personID int64) ([]int64, error)

	// Merge support: repoint content/role references from one target entity
	// to another, deduplicating multi-valued lists. Both return the ids of
	// the manuscripts whose references were rewritten.
	RewriteKeywordRefs(ctx context.Context, from, to int64) ([]int64, error)
	RewritePersonRefs(ctx context.Context, from, to int64) ([]int64, error)
}
