package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/management"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
	"github.com/scriptorium-io/scriptorium/modules/catalog/infrastructure/index"
)

// The fakes embed their repository interface so only the methods a test
// exercises need implementations; calling anything else panics.

type fakeKeywordRepo struct {
	keyword.Repository
	shorts      map[int64]*keyword.Keyword
	listed      []int64
	children    map[int64][]int64
	descendants map[int64][]int64
}

func (f *fakeKeywordRepo) LoadShort(ctx context.Context, ids []int64) (map[int64]*keyword.Keyword, error) {
	out := make(map[int64]*keyword.Keyword)
	for _, id := range entity.UniqueIDs(ids) {
		if k, ok := f.shorts[id]; ok {
			out[id] = k
		}
	}
	return out, nil
}

func (f *fakeKeywordRepo) ListIDs(ctx context.Context) ([]int64, error) {
	return f.listed, nil
}

func (f *fakeKeywordRepo) ChildIDs(ctx context.Context, id int64) ([]int64, error) {
	return f.children[id], nil
}

func (f *fakeKeywordRepo) DescendantIDs(ctx context.Context, id int64) ([]int64, error) {
	return f.descendants[id], nil
}

type fakePersonRepo struct {
	person.Repository
	shorts map[int64]*person.Person
	listed []int64
}

func (f *fakePersonRepo) LoadShort(ctx context.Context, ids []int64) (map[int64]*person.Person, error) {
	out := make(map[int64]*person.Person)
	for _, id := range entity.UniqueIDs(ids) {
		if p, ok := f.shorts[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakePersonRepo) ListIDs(ctx context.Context) ([]int64, error) {
	return f.listed, nil
}

type fakeManuscriptRepo struct {
	manuscript.Repository
	shorts    map[int64]*manuscript.Manuscript
	listed    []int64
	byKeyword map[int64][]int64
	byPerson  map[int64][]int64
}

func (f *fakeManuscriptRepo) LoadShort(ctx context.Context, ids []int64) (map[int64]*manuscript.Manuscript, error) {
	out := make(map[int64]*manuscript.Manuscript)
	for _, id := range entity.UniqueIDs(ids) {
		if m, ok := f.shorts[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeManuscriptRepo) ListIDs(ctx context.Context) ([]int64, error) {
	return f.listed, nil
}

func (f *fakeManuscriptRepo) IDsByKeyword(ctx context.Context, keywordID int64) ([]int64, error) {
	return f.byKeyword[keywordID], nil
}

func (f *fakeManuscriptRepo) IDsByPerson(ctx context.Context, personID int64) ([]int64, error) {
	return f.byPerson[personID], nil
}

type fakeManagementRepo struct {
	management.Repository
	shorts map[int64]*management.Management
	listed []int64
	tagged map[int64][]entity.Ref
}

func (f *fakeManagementRepo) LoadShort(ctx context.Context, ids []int64) (map[int64]*management.Management, error) {
	out := make(map[int64]*management.Management)
	for _, id := range entity.UniqueIDs(ids) {
		if m, ok := f.shorts[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

func (f *fakeManagementRepo) ListIDs(ctx context.Context) ([]int64, error) {
	return f.listed, nil
}

func (f *fakeManagementRepo) TaggedRefs(ctx context.Context, id int64) ([]entity.Ref, error) {
	return f.tagged[id], nil
}

// fakeDriver is an in-memory index.Driver recording every write.
type fakeDriver struct {
	docs      map[string]index.Document
	updateErr error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{docs: make(map[string]index.Document)}
}

func docKey(kind entity.Kind, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func (d *fakeDriver) Add(ctx context.Context, doc index.Document) error {
	return d.Update(ctx, doc)
}

func (d *fakeDriver) AddMultiple(ctx context.Context, docs []index.Document) error {
	return d.UpdateMultiple(ctx, docs)
}

func (d *fakeDriver) Update(ctx context.Context, doc index.Document) error {
	if d.updateErr != nil {
		return d.updateErr
	}
	d.docs[docKey(doc.Kind, doc.ID)] = doc
	return nil
}

func (d *fakeDriver) UpdateMultiple(ctx context.Context, docs []index.Document) error {
	for _, doc := range docs {
		if err := d.Update(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (d *fakeDriver) Delete(ctx context.Context, kind entity.Kind, id int64) error {
	delete(d.docs, docKey(kind, id))
	return nil
}

func (d *fakeDriver) DeleteMultiple(ctx context.Context, kind entity.Kind, ids []int64) error {
	for _, id := range ids {
		delete(d.docs, docKey(kind, id))
	}
	return nil
}

func (d *fakeDriver) IDs(ctx context.Context, kind entity.Kind) ([]int64, error) {
	var out []int64
	for _, doc := range d.docs {
		if doc.Kind == kind {
			out = append(out, doc.ID)
		}
	}
	return out, nil
}

func (d *fakeDriver) Get(ctx context.Context, kind entity.Kind, id int64) (json.RawMessage, bool, error) {
	doc, ok := d.docs[docKey(kind, id)]
	if !ok {
		return nil, false, nil
	}
	return doc.Body, true, nil
}
