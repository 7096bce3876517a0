package services

import (
	"context"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/management"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
)

// DependencyResolver answers "whose projection embeds this entity".
// Indexed documents are short projections, so only short-tier embeddings
// count: manuscripts embed keyword and person minis, keyword shorts embed
// their parent's mini, management tags appear on every tagged short. An
// empty answer is normal.
type DependencyResolver struct {
	keywords    keyword.Repository
	manuscripts manuscript.Repository
	managements management.Repository
}

func NewDependencyResolver(
	keywords keyword.Repository,
	manuscripts manuscript.Repository,
	managements management.Repository,
) *DependencyResolver {
	return &DependencyResolver{
		keywords:    keywords,
		manuscripts: manuscripts,
		managements: managements,
	}
}

// Dependents returns, per kind, the ids of entities whose indexed document
// embeds the given entity.
func (r *DependencyResolver) Dependents(ctx context.Context, kind entity.Kind, id int64) (map[entity.Kind][]int64, error) {
	out := make(map[entity.Kind][]int64)
	switch kind {
	case entity.KindKeyword:
		ms, err := r.manuscripts.IDsByKeyword(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(ms) > 0 {
			out[entity.KindManuscript] = ms
		}
		children, err := r.keywords.ChildIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			out[entity.KindKeyword] = children
		}
	case entity.KindPerson:
		ms, err := r.manuscripts.IDsByPerson(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(ms) > 0 {
			out[entity.KindManuscript] = ms
		}
	case entity.KindManagement:
		refs, err := r.managements.TaggedRefs(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			out[ref.Kind] = append(out[ref.Kind], ref.ID)
		}
	case entity.KindManuscript:
		// Nothing indexes a manuscript embedding: person manuscript lists
		// exist only at the full tier, which is derived live.
	}
	return out, nil
}

// DependentsWithChildren widens a keyword answer with the transitive
// descendants, for operations that restructure a subtree.
func (r *DependencyResolver) DependentsWithChildren(ctx context.Context, kind entity.Kind, id int64) (map[entity.Kind][]int64, error) {
	out, err := r.Dependents(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if kind != entity.KindKeyword {
		return out, nil
	}
	descendants, err := r.keywords.DescendantIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(descendants) > 0 {
		out[entity.KindKeyword] = entity.UniqueIDs(append(out[entity.KindKeyword], descendants...))
	}
	return out, nil
}
