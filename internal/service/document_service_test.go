package service

import (
	"context"
	"testing"

	"askdocs-go/internal/model"
	"askdocs-go/pkg/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocRepo struct {
	docs    []model.Document
	deleted []string
}

func (f *fakeDocRepo) Create(doc *model.Document) error { return nil }

func (f *fakeDocRepo) FindByDocID(docID string) (*model.Document, error) {
	for i := range f.docs {
		if f.docs[i].DocID == docID {
			return &f.docs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeDocRepo) FindAll() ([]model.Document, error) { return f.docs, nil }

func (f *fakeDocRepo) FindByCollection(collection string) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range f.docs {
		if doc.Collection == collection {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeDocRepo) DeleteByDocID(docID string) (bool, error) {
	for i, doc := range f.docs {
		if doc.DocID == docID {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			f.deleted = append(f.deleted, docID)
			return true, nil
		}
	}
	return false, nil
}

type fakeDropIndex struct {
	dropped []string
}

func (f *fakeDropIndex) EnsureCollection(ctx context.Context, name string, dim int) error {
	return nil
}

func (f *fakeDropIndex) Upsert(ctx context.Context, name string, records []vectorindex.Record) error {
	return nil
}

func (f *fakeDropIndex) Search(ctx context.Context, name string, vector []float32, k int) ([]vectorindex.SearchResult, error) {
	return nil, nil
}

func (f *fakeDropIndex) DropCollection(ctx context.Context, name string) error {
	f.dropped = append(f.dropped, name)
	return nil
}

type removedObject struct {
	bucket string
	object string
}

func TestDeleteSpaceCleansIndexObjectsAndMetadata(t *testing.T) {
	repo := &fakeDocRepo{docs: []model.Document{
		{DocID: "d1", Collection: "space_job1", SourcePath: "uploads/a.pdf"},
		{DocID: "d2", Collection: "space_job1", SourcePath: ""},
		{DocID: "d3", Collection: "space_other", SourcePath: "uploads/c.pdf"},
	}}
	idx := &fakeDropIndex{}
	svc := NewDocumentService(repo, idx, "askdocs")

	var removed []removedObject
	svc.removeObject = func(ctx context.Context, bucket, object string) {
		removed = append(removed, removedObject{bucket: bucket, object: object})
	}

	require.NoError(t, svc.DeleteSpace(context.Background(), "job1"))

	assert.Equal(t, []string{"space_job1"}, idx.dropped)
	// 只有带 SourcePath 的文档触发对象清理
	assert.Equal(t, []removedObject{{bucket: "askdocs", object: "uploads/a.pdf"}}, removed)
	assert.ElementsMatch(t, []string{"d1", "d2"}, repo.deleted)

	// 其它空间的文档不受影响
	remaining, err := repo.FindByCollection("space_other")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestDeleteReturnsNotFound(t *testing.T) {
	svc := NewDocumentService(&fakeDocRepo{}, &fakeDropIndex{}, "askdocs")
	assert.ErrorIs(t, svc.Delete("missing"), ErrDocumentNotFound)
}
