package services

import (
	"context"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

type PersonService struct {
	base
	repo person.Repository
}

func NewPersonService(deps Deps, repo person.Repository) *PersonService {
	return &PersonService{base: base{deps: deps}, repo: repo}
}

func (s *PersonService) GetByID(ctx context.Context, id int64) (*person.Person, error) {
	return s.repo.LoadFull(s.withPool(ctx), id)
}

func (s *PersonService) GetShort(ctx context.Context, ids []int64) (map[int64]*person.Person, error) {
	return s.repo.LoadShort(s.withPool(ctx), ids)
}

func (s *PersonService) Create(ctx context.Context, dto *person.CreateDTO) (*person.Person, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var (
		created *person.Person
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
		if err := s.record(txCtx, entity.KindPerson, id, nil, created); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Upsert(txCtx, entity.KindPerson, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindPerson, created.ID)
		}
		return nil, err
	}
	s.finish(ctx, entity.KindPerson, []int64{created.ID}, nil)
	return created, nil
}

func (s *PersonService) Update(ctx context.Context, id int64, patch *person.UpdateDTO) (*person.Person, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}

	var (
		changes entity.ChangeSet
		updated *person.Person
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
		if err := s.record(txCtx, entity.KindPerson, id, old, updated); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Upsert(txCtx, entity.KindPerson, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindPerson, id)
		}
		return nil, err
	}

	var dependents map[entity.Kind][]int64
	if changes.Changed(entity.TierMini) {
		if dependents, err = s.deps.Resolver.Dependents(s.withPool(ctx), entity.KindPerson, id); err != nil {
			s.deps.Logger.WithError(err).Warn("dependent resolution failed after person update")
		}
	}
	s.finish(ctx, entity.KindPerson, []int64{id}, dependents)
	return updated, nil
}

func (s *PersonService) Delete(ctx context.Context, id int64) error {
	if err := s.requireActor(ctx); err != nil {
		return err
	}

	var indexed bool
	err := s.inTx(ctx, func(txCtx context.Context) error {
		old, err := s.repo.LoadFull(txCtx, id)
		if err != nil {
			return err
		}
		dependents, err := s.deps.Resolver.Dependents(txCtx, entity.KindPerson, id)
		if err != nil {
			return err
		}
		if hasDependents(dependents) {
			return serrors.NewDependencyConflict(entity.KindPerson.String(), id, conflictMeta(dependents))
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindPerson, id, old, nil); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Delete(txCtx, entity.KindPerson, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindPerson, id)
		}
		return err
	}
	s.finish(ctx, entity.KindPerson, []int64{id}, nil)
	return nil
}

func (s *PersonService) Merge(ctx context.Context, primaryID, secondaryID int64) (*person.Person, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if primaryID == secondaryID {
		return nil, serrors.NewBadRequest("cannot merge a person into themselves")
	}

	var (
		merged  *person.Person
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

		if patch, has := personMergePatch(oldPrimary, oldSecondary); has {
			var cs entity.ChangeSet
			if err := s.repo.Update(txCtx, primaryID, patch, &cs); err != nil {
				return err
			}
		}
		if err := s.deps.Subdata.MigrateTo(txCtx, entity.KindPerson, secondaryID, primaryID); err != nil {
			return err
		}
		rewritten, err := s.deps.Resolver.manuscripts.RewritePersonRefs(txCtx, secondaryID, primaryID)
		if err != nil {
			return err
		}
		touched[entity.KindManuscript] = rewritten

		if err := s.repo.Delete(txCtx, secondaryID); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindPerson, secondaryID, oldSecondary, nil); err != nil {
			return err
		}

		if merged, err = s.repo.LoadFull(txCtx, primaryID); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindPerson, primaryID, oldPrimary, merged); err != nil {
			return err
		}
		if err := s.deps.Indexer.Upsert(txCtx, entity.KindPerson, primaryID); err != nil {
			return err
		}
		return s.deps.Indexer.Delete(txCtx, entity.KindPerson, secondaryID)
	})
	if err != nil {
		touched[entity.KindPerson] = append(touched[entity.KindPerson], primaryID, secondaryID)
		s.repairAfterRollback(ctx, touched)
		return nil, err
	}

	s.finish(ctx, entity.KindPerson, []int64{primaryID, secondaryID}, touched)
	return merged, nil
}

func personMergePatch(primary, secondary *person.Person) (*person.UpdateDTO, bool) {
	patch := &person.UpdateDTO{}
	has := false
	if primary.FirstName == "" && secondary.FirstName != "" {
		patch.FirstName = &secondary.FirstName
		has = true
	}
	if primary.LastName == "" && secondary.LastName != "" {
		patch.LastName = &secondary.LastName
		has = true
	}
	if primary.Description == "" && secondary.Description != "" {
		patch.Description = &secondary.Description
		has = true
	}
	if primary.PublicComment == "" && secondary.PublicComment != "" {
		patch.PublicComment = &secondary.PublicComment
		has = true
	}
	if primary.PrivateComment == "" && secondary.PrivateComment != "" {
		patch.PrivateComment = &secondary.PrivateComment
		has = true
	}
	return patch, has
}
