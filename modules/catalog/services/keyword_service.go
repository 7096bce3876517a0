package services

import (
	"context"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

// KeywordService is the facade for the keyword taxonomy. Every mutation is
// one transaction carrying the row writes, the revision and the primary
// index document; dependent documents are swept after commit.
type KeywordService struct {
	base
	repo keyword.Repository
}

func NewKeywordService(deps Deps, repo keyword.Repository) *KeywordService {
	return &KeywordService{base: base{deps: deps}, repo: repo}
}

func (s *KeywordService) GetByID(ctx context.Context, id int64) (*keyword.Keyword, error) {
	return s.repo.LoadFull(s.withPool(ctx), id)
}

func (s *KeywordService) GetShort(ctx context.Context, ids []int64) (map[int64]*keyword.Keyword, error) {
	return s.repo.LoadShort(s.withPool(ctx), ids)
}

func (s *KeywordService) Create(ctx context.Context, dto *keyword.CreateDTO) (*keyword.Keyword, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if dto.ParentID != nil {
		parents, err := s.repo.LoadMini(s.withPool(ctx), []int64{*dto.ParentID})
		if err != nil {
			return nil, err
		}
		if _, ok := parents[*dto.ParentID]; !ok {
			return nil, serrors.NewNotFound(entity.KindKeyword.String(), *dto.ParentID)
		}
	}

	var (
		created *keyword.Keyword
		indexed bool
	)
	err := s.inTx(ctx, func(txCtx context.Context) error {
		id, err := s.repo.Create(txCtx, dto)
		if err != nil {
			return err
		}
		if created, err = s.repo.LoadFull(txCtx, id); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindKeyword, id, nil, created); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Upsert(txCtx, entity.KindKeyword, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindKeyword, created.ID)
		}
		return nil, err
	}
	s.finish(ctx, entity.KindKeyword, []int64{created.ID}, nil)
	return created, nil
}

func (s *KeywordService) Update(ctx context.Context, id int64, patch *keyword.UpdateDTO) (*keyword.Keyword, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if patch.ParentID != nil {
		if err := s.guardHierarchy(ctx, id, *patch.ParentID); err != nil {
			return nil, err
		}
	}

	var (
		changes entity.ChangeSet
		updated *keyword.Keyword
		indexed bool
	)
	err := s.inTx(ctx, func(txCtx context.Context) error {
		old, err := s.repo.LoadFull(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, id, patch, &changes); err != nil {
			return err
		}
		if !changes.Any() {
			return ErrNoRecognizedChange
		}
		if updated, err = s.repo.LoadFull(txCtx, id); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindKeyword, id, old, updated); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Upsert(txCtx, entity.KindKeyword, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindKeyword, id)
		}
		return nil, err
	}

	var dependents map[entity.Kind][]int64
	if changes.Changed(entity.TierMini) {
		if dependents, err = s.deps.Resolver.Dependents(s.withPool(ctx), entity.KindKeyword, id); err != nil {
			s.deps.Logger.WithError(err).Warn("dependent resolution failed after keyword update")
		}
	}
	s.finish(ctx, entity.KindKeyword, []int64{id}, dependents)
	return updated, nil
}

// guardHierarchy rejects a reparenting that would close a cycle: the new
// parent must be neither the node itself nor one of its descendants. Runs
// before the transaction so a doomed update never starts.
func (s *KeywordService) guardHierarchy(ctx context.Context, id, newParentID int64) error {
	if newParentID == id {
		return serrors.NewBadRequest("keyword cannot be its own parent")
	}
	descendants, err := s.repo.DescendantIDs(s.withPool(ctx), id)
	if err != nil {
		return err
	}
	for _, did := range descendants {
		if did == newParentID {
			return serrors.NewBadRequest("keyword cannot be reparented under its own descendant")
		}
	}
	return nil
}

func (s *KeywordService) Delete(ctx context.Context, id int64) error {
	if err := s.requireActor(ctx); err != nil {
		return err
	}

	var indexed bool
	err := s.inTx(ctx, func(txCtx context.Context) error {
		old, err := s.repo.LoadFull(txCtx, id)
		if err != nil {
			return err
		}
		dependents, err := s.deps.Resolver.Dependents(txCtx, entity.KindKeyword, id)
		if err != nil {
			return err
		}
		if hasDependents(dependents) {
			return serrors.NewDependencyConflict(entity.KindKeyword.String(), id, conflictMeta(dependents))
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindKeyword, id, old, nil); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Delete(txCtx, entity.KindKeyword, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindKeyword, id)
		}
		return err
	}
	s.finish(ctx, entity.KindKeyword, []int64{id}, nil)
	return nil
}

// Merge folds secondary into primary: empty scalar fields are filled from
// the secondary, sub-rows migrate, children are reparented, manuscript
// content references are rewritten, then the secondary is deleted. One
// transaction; on failure every document the transaction may have written
// is re-derived from the rolled-back state.
func (s *KeywordService) Merge(ctx context.Context, primaryID, secondaryID int64) (*keyword.Keyword, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if primaryID == secondaryID {
		return nil, serrors.NewBadRequest("cannot merge a keyword into itself")
	}

	var (
		merged  *keyword.Keyword
		touched = map[entity.Kind][]int64{}
	)
	err := s.inTx(ctx, func(txCtx context.Context) error {
		oldPrimary, err := s.repo.LoadFull(txCtx, primaryID)
		if err != nil {
			return err
		}
		oldSecondary, err := s.repo.LoadFull(txCtx, secondaryID)
		if err != nil {
			return err
		}
		descendantIDs, err := s.repo.DescendantIDs(txCtx, primaryID)
		if err != nil {
			return err
		}
		descendants := make(map[int64]struct{}, len(descendantIDs))
		for _, did := range descendantIDs {
			descendants[did] = struct{}{}
		}

		patch, hasPatch := keywordMergePatch(oldPrimary, oldSecondary, secondaryID, descendants)
		if hasPatch {
			var cs entity.ChangeSet
			if err := s.repo.Update(txCtx, primaryID, patch, &cs); err != nil {
				return err
			}
		}
		if err := s.deps.Subdata.MigrateTo(txCtx, entity.KindKeyword, secondaryID, primaryID); err != nil {
			return err
		}
		// Children of the secondary that lie on the primary's own ancestor
		// chain must not move under the primary: that would close a cycle.
		// The chain is walked after the merge patch, which may already have
		// moved the primary off the secondary.
		exclude, err := s.ancestorIDs(txCtx, primaryID)
		if err != nil {
			return err
		}
		exclude = append(exclude, primaryID)
		moved, err := s.repo.ReparentChildren(txCtx, secondaryID, primaryID, exclude)
		if err != nil {
			return err
		}
		spliced, err := s.spliceRemainingChildren(txCtx, oldSecondary)
		if err != nil {
			return err
		}
		moved = append(moved, spliced...)
		rewritten, err := s.deps.Resolver.manuscripts.RewriteKeywordRefs(txCtx, secondaryID, primaryID)
		if err != nil {
			return err
		}
		touched[entity.KindKeyword] = moved
		touched[entity.KindManuscript] = rewritten

		if err := s.repo.Delete(txCtx, secondaryID); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindKeyword, secondaryID, oldSecondary, nil); err != nil {
			return err
		}

		if merged, err = s.repo.LoadFull(txCtx, primaryID); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindKeyword, primaryID, oldPrimary, merged); err != nil {
			return err
		}
		if err := s.deps.Indexer.Upsert(txCtx, entity.KindKeyword, primaryID); err != nil {
			return err
		}
		return s.deps.Indexer.Delete(txCtx, entity.KindKeyword, secondaryID)
	})
	if err != nil {
		touched[entity.KindKeyword] = append(touched[entity.KindKeyword], primaryID, secondaryID)
		s.repairAfterRollback(ctx, touched)
		return nil, err
	}

	s.finish(ctx, entity.KindKeyword, []int64{primaryID, secondaryID}, touched)
	return merged, nil
}

// ancestorIDs walks the parent chain upward from id, nearest ancestor
// first. The seen set terminates the walk even on corrupted data
// containing a cycle.
func (s *KeywordService) ancestorIDs(ctx context.Context, id int64) ([]int64, error) {
	seen := map[int64]struct{}{id: {}}
	var out []int64
	cur := id
	for {
		nodes, err := s.repo.LoadMini(ctx, []int64{cur})
		if err != nil {
			return nil, err
		}
		node, ok := nodes[cur]
		if !ok || node.ParentID == nil {
			return out, nil
		}
		next := *node.ParentID
		if _, ok := seen[next]; ok {
			return out, nil
		}
		seen[next] = struct{}{}
		out = append(out, next)
		cur = next
	}
}

// spliceRemainingChildren moves whatever still hangs under the secondary
// onto the secondary's own parent, so that deleting the secondary never
// pulls one of the primary's ancestors underneath the primary. Returns the
// moved ids.
func (s *KeywordService) spliceRemainingChildren(ctx context.Context, secondary *keyword.Keyword) ([]int64, error) {
	remaining, err := s.repo.ChildIDs(ctx, secondary.ID)
	if err != nil || len(remaining) == 0 {
		return nil, err
	}
	patch := &keyword.UpdateDTO{}
	if secondary.ParentID != nil {
		patch.ParentID = secondary.ParentID
	} else {
		patch.ClearParent = true
	}
	for _, cid := range remaining {
		var cs entity.ChangeSet
		if err := s.repo.Update(ctx, cid, patch, &cs); err != nil {
			return nil, err
		}
	}
	return remaining, nil
}

// keywordMergePatch fills the primary's empty fields from the secondary and
// repairs a parent edge that pointed at the disappearing secondary. A parent
// inherited from the secondary must not be the primary itself or one of the
// primary's descendants; in those cases the primary becomes (or stays) a
// root instead.
func keywordMergePatch(primary, secondary *keyword.Keyword, secondaryID int64, primaryDescendants map[int64]struct{}) (*keyword.UpdateDTO, bool) {
	patch := &keyword.UpdateDTO{}
	has := false
	if primary.PublicComment == "" && secondary.PublicComment != "" {
		patch.PublicComment = &secondary.PublicComment
		has = true
	}
	if primary.PrivateComment == "" && secondary.PrivateComment != "" {
		patch.PrivateComment = &secondary.PrivateComment
		has = true
	}
	inheritable := func(pid *int64) bool {
		if pid == nil || *pid == primary.ID {
			return false
		}
		_, cyclic := primaryDescendants[*pid]
		return !cyclic
	}
	switch {
	case primary.ParentID != nil && *primary.ParentID == secondaryID:
		// The primary hangs under the secondary: inherit the secondary's
		// parent, or become a root if that would close a cycle.
		if inheritable(secondary.ParentID) {
			patch.ParentID = secondary.ParentID
		} else {
			patch.ClearParent = true
		}
		has = true
	case primary.ParentID == nil && inheritable(secondary.ParentID):
		patch.ParentID = secondary.ParentID
		has = true
	}
	return patch, has
}
