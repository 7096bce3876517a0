package services

import (
	"context"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/management"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

type ManagementService struct {
	base
	repo management.Repository
}

func NewManagementService(deps Deps, repo management.Repository) *ManagementService {
	return &ManagementService{base: base{deps: deps}, repo: repo}
}

func (s *ManagementService) GetByID(ctx context.Context, id int64) (*management.Management, error) {
	return s.repo.LoadFull(s.withPool(ctx), id)
}

func (s *ManagementService) GetShort(ctx context.Context, ids []int64) (map[int64]*management.Management, error) {
	return s.repo.LoadShort(s.withPool(ctx), ids)
}

// TaggedRefs lists everything carrying the tag, for curation screens.
func (s *ManagementService) TaggedRefs(ctx context.Context, id int64) ([]entity.Ref, error) {
	return s.repo.TaggedRefs(s.withPool(ctx), id)
}

func (s *ManagementService) Create(ctx context.Context, dto *management.CreateDTO) (*management.Management, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var (
		created *management.Management
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
		if err := s.record(txCtx, entity.KindManagement, id, nil, created); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Upsert(txCtx, entity.KindManagement, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindManagement, created.ID)
		}
		return nil, err
	}
	s.finish(ctx, entity.KindManagement, []int64{created.ID}, nil)
	return created, nil
}

func (s *ManagementService) Update(ctx context.Context, id int64, patch *management.UpdateDTO) (*management.Management, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}

	var (
		changes entity.ChangeSet
		updated *management.Management
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
		if err := s.record(txCtx, entity.KindManagement, id, old, updated); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Upsert(txCtx, entity.KindManagement, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindManagement, id)
		}
		return nil, err
	}

	// A renamed tag shows up in every tagged short projection.
	var dependents map[entity.Kind][]int64
	if changes.Changed(entity.TierMini) {
		if dependents, err = s.deps.Resolver.Dependents(s.withPool(ctx), entity.KindManagement, id); err != nil {
			s.deps.Logger.WithError(err).Warn("dependent resolution failed after management update")
		}
	}
	s.finish(ctx, entity.KindManagement, []int64{id}, dependents)
	return updated, nil
}

func (s *ManagementService) Delete(ctx context.Context, id int64) error {
	if err := s.requireActor(ctx); err != nil {
		return err
	}

	var indexed bool
	err := s.inTx(ctx, func(txCtx context.Context) error {
		old, err := s.repo.LoadFull(txCtx, id)
		if err != nil {
			return err
		}
		dependents, err := s.deps.Resolver.Dependents(txCtx, entity.KindManagement, id)
		if err != nil {
			return err
		}
		if hasDependents(dependents) {
			return serrors.NewDependencyConflict(entity.KindManagement.String(), id, conflictMeta(dependents))
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindManagement, id, old, nil); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Delete(txCtx, entity.KindManagement, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindManagement, id)
		}
		return err
	}
	s.finish(ctx, entity.KindManagement, []int64{id}, nil)
	return nil
}

func (s *ManagementService) Merge(ctx context.Context, primaryID, secondaryID int64) (*management.Management, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if primaryID == secondaryID {
		return nil, serrors.NewBadRequest("cannot merge a management tag into itself")
	}

	var (
		merged  *management.Management
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

		retagged, err := s.repo.RewriteRefs(txCtx, secondaryID, primaryID)
		if err != nil {
			return err
		}
		for _, ref := range retagged {
			touched[ref.Kind] = append(touched[ref.Kind], ref.ID)
		}

		if err := s.repo.Delete(txCtx, secondaryID); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindManagement, secondaryID, oldSecondary, nil); err != nil {
			return err
		}

		if merged, err = s.repo.LoadFull(txCtx, primaryID); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindManagement, primaryID, oldPrimary, merged); err != nil {
			return err
		}
		if err := s.deps.Indexer.Upsert(txCtx, entity.KindManagement, primaryID); err != nil {
			return err
		}
		return s.deps.Indexer.Delete(txCtx, entity.KindManagement, secondaryID)
	})
	if err != nil {
		touched[entity.KindManagement] = append(touched[entity.KindManagement], primaryID, secondaryID)
		s.repairAfterRollback(ctx, touched)
		return nil, err
	}

	s.finish(ctx, entity.KindManagement, []int64{primaryID, secondaryID}, touched)
	return merged, nil
}
