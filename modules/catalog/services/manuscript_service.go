package services

import (
	"context"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

type ManuscriptService struct {
	base
	repo manuscript.Repository
}

func NewManuscriptService(deps Deps, repo manuscript.Repository) *ManuscriptService {
	return &ManuscriptService{base: base{deps: deps}, repo: repo}
}

func (s *ManuscriptService) GetByID(ctx context.Context, id int64) (*manuscript.Manuscript, error) {
	return s.repo.LoadFull(s.withPool(ctx), id)
}

func (s *ManuscriptService) GetShort(ctx context.Context, ids []int64) (map[int64]*manuscript.Manuscript, error) {
	return s.repo.LoadShort(s.withPool(ctx), ids)
}

func (s *ManuscriptService) Create(ctx context.Context, dto *manuscript.CreateDTO) (*manuscript.Manuscript, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var (
		created *manuscript.Manuscript
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
		if err := s.record(txCtx, entity.KindManuscript, id, nil, created); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Upsert(txCtx, entity.KindManuscript, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindManuscript, created.ID)
		}
		return nil, err
	}
	s.finish(ctx, entity.KindManuscript, []int64{created.ID}, nil)
	return created, nil
}

func (s *ManuscriptService) Update(ctx context.Context, id int64, patch *manuscript.UpdateDTO) (*manuscript.Manuscript, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}

	var (
		changes entity.ChangeSet
		updated *manuscript.Manuscript
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
		if err := s.record(txCtx, entity.KindManuscript, id, old, updated); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Upsert(txCtx, entity.KindManuscript, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindManuscript, id)
		}
		return nil, err
	}
	// Manuscript labels are embedded nowhere at the short tier, so no
	// dependent sweep is needed even on mini-tier changes.
	s.finish(ctx, entity.KindManuscript, []int64{id}, nil)
	return updated, nil
}

func (s *ManuscriptService) Delete(ctx context.Context, id int64) error {
	if err := s.requireActor(ctx); err != nil {
		return err
	}

	var indexed bool
	err := s.inTx(ctx, func(txCtx context.Context) error {
		old, err := s.repo.LoadFull(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindManuscript, id, old, nil); err != nil {
			return err
		}
		indexed = true
		return s.deps.Indexer.Delete(txCtx, entity.KindManuscript, id)
	})
	if err != nil {
		if indexed {
			s.recoverIndex(ctx, entity.KindManuscript, id)
		}
		return err
	}
	s.finish(ctx, entity.KindManuscript, []int64{id}, nil)
	return nil
}

func (s *ManuscriptService) Merge(ctx context.Context, primaryID, secondaryID int64) (*manuscript.Manuscript, error) {
	if err := s.requireActor(ctx); err != nil {
		return nil, err
	}
	if primaryID == secondaryID {
		return nil, serrors.NewBadRequest("cannot merge a manuscript into itself")
	}

	var (
		merged  *manuscript.Manuscript
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

		patch := manuscriptMergePatch(oldPrimary, oldSecondary)
		var cs entity.ChangeSet
		if err := s.repo.Update(txCtx, primaryID, patch, &cs); err != nil {
			return err
		}
		if err := s.deps.Subdata.MigrateTo(txCtx, entity.KindManuscript, secondaryID, primaryID); err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, secondaryID); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindManuscript, secondaryID, oldSecondary, nil); err != nil {
			return err
		}

		if merged, err = s.repo.LoadFull(txCtx, primaryID); err != nil {
			return err
		}
		if err := s.record(txCtx, entity.KindManuscript, primaryID, oldPrimary, merged); err != nil {
			return err
		}
		if err := s.deps.Indexer.Upsert(txCtx, entity.KindManuscript, primaryID); err != nil {
			return err
		}
		return s.deps.Indexer.Delete(txCtx, entity.KindManuscript, secondaryID)
	})
	if err != nil {
		touched[entity.KindManuscript] = append(touched[entity.KindManuscript], primaryID, secondaryID)
		s.repairAfterRollback(ctx, touched)
		return nil, err
	}

	s.finish(ctx, entity.KindManuscript, []int64{primaryID, secondaryID}, touched)
	return merged, nil
}

// manuscriptMergePatch fills empty scalars from the secondary and unions
// the content and role lists. The union always differs from the secondary
// disappearing, so the patch is applied unconditionally.
func manuscriptMergePatch(primary, secondary *manuscript.Manuscript) *manuscript.UpdateDTO {
	patch := &manuscript.UpdateDTO{}
	if primary.Shelf == "" && secondary.Shelf != "" {
		patch.Shelf = &secondary.Shelf
	}
	if primary.Date == "" && secondary.Date != "" {
		patch.Date = &secondary.Date
	}
	if primary.PublicComment == "" && secondary.PublicComment != "" {
		patch.PublicComment = &secondary.PublicComment
	}
	if primary.PrivateComment == "" && secondary.PrivateComment != "" {
		patch.PrivateComment = &secondary.PrivateComment
	}

	var contentIDs []int64
	for _, k := range primary.Contents {
		contentIDs = append(contentIDs, k.ID)
	}
	for _, k := range secondary.Contents {
		contentIDs = append(contentIDs, k.ID)
	}
	union := entity.UniqueIDs(contentIDs)
	patch.ContentIDs = &union

	roles := make([]manuscript.RoleDTO, 0, len(primary.Roles)+len(secondary.Roles))
	seen := make(map[manuscript.RoleDTO]struct{})
	for _, ra := range append(append([]manuscript.RoleAssignment{}, primary.Roles...), secondary.Roles...) {
		dto := manuscript.RoleDTO{Role: ra.Role, PersonID: ra.Person.ID}
		if _, ok := seen[dto]; ok {
			continue
		}
		seen[dto] = struct{}{}
		roles = append(roles, dto)
	}
	patch.Roles = &roles
	return patch
}
