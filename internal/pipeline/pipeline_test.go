package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"askdocs-go/internal/chunker"
	"askdocs-go/internal/extractor"
	"askdocs-go/internal/model"
	"askdocs-go/internal/progress"
	"askdocs-go/pkg/tasks"
	"askdocs-go/pkg/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher 把固定内容写到临时 txt 文件，模拟对象存储下载。
type fakeFetcher struct {
	content string
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "pipeline-test-")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "source.txt")
	if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
		return "", nil, err
	}
	return path, func() { os.RemoveAll(dir) }, nil
}

// fakeEmbedder 生成固定维度的向量，可配置在第 N 次调用时失败。
type fakeEmbedder struct {
	dim      int
	calls    int
	failCall int // 第几次调用返回错误，0 表示永不失败
}

func (e *fakeEmbedder) Dimension() int { return e.dim }

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.failCall > 0 && e.calls == e.failCall {
		return nil, fmt.Errorf("embedding 服务不可用")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, e.dim)
		vec[0] = 1
		vectors[i] = vec
	}
	return vectors, nil
}

// fakeIndex 在内存中保存记录，可配置前 N 次 Upsert 返回维度不匹配。
type fakeIndex struct {
	mu             sync.Mutex
	records        map[string][]vectorindex.Record
	mismatchLeft   int // 剩余多少次 Upsert 返回维度不匹配
	dropCalls      int
	ensuredDims    map[string]int
	alwaysMismatch bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		records:     make(map[string][]vectorindex.Record),
		ensuredDims: make(map[string]int),
	}
}

func (f *fakeIndex) EnsureCollection(_ context.Context, name string, dim int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensuredDims[name] = dim
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, name string, records []vectorindex.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alwaysMismatch {
		return vectorindex.ErrDimensionMismatch
	}
	if f.mismatchLeft > 0 {
		f.mismatchLeft--
		return vectorindex.ErrDimensionMismatch
	}
	f.records[name] = append(f.records[name], records...)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, _ []float32, _ int) ([]vectorindex.SearchResult, error) {
	return nil, nil
}

func (f *fakeIndex) DropCollection(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropCalls++
	delete(f.records, name)
	return nil
}

// fakeDocRepo 是 DocumentRepository 的内存实现。
type fakeDocRepo struct {
	docs []model.Document
}

func (r *fakeDocRepo) Create(doc *model.Document) error {
	r.docs = append(r.docs, *doc)
	return nil
}

func (r *fakeDocRepo) FindByDocID(docID string) (*model.Document, error) {
	for i := range r.docs {
		if r.docs[i].DocID == docID {
			return &r.docs[i], nil
		}
	}
	return nil, nil
}

func (r *fakeDocRepo) FindAll() ([]model.Document, error) { return r.docs, nil }

func (r *fakeDocRepo) FindByCollection(collection string) ([]model.Document, error) {
	var out []model.Document
	for _, d := range r.docs {
		if d.Collection == collection {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeDocRepo) DeleteByDocID(docID string) (bool, error) {
	for i := range r.docs {
		if r.docs[i].DocID == docID {
			r.docs = append(r.docs[:i], r.docs[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// 生成约 3000 字符、由完整句子构成的文本。
func longText() string {
	var sb strings.Builder
	for sb.Len() < 3000 {
		sb.WriteString("The quick brown fox jumps over the lazy dog near the river bank. ")
	}
	return sb.String()
}

func newTestPipeline(t *testing.T, fetcher FileFetcher, emb *fakeEmbedder, idx vectorindex.Index, store progress.Store, repo *fakeDocRepo) *Pipeline {
	t.Helper()
	ck, err := chunker.New(400, 80)
	require.NoError(t, err)
	return New(fetcher, extractor.New(), ck, emb, idx, store, repo, 2)
}

func TestIngestHappyPath(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	idx := newFakeIndex()
	repo := &fakeDocRepo{}
	emb := &fakeEmbedder{dim: 4}
	p := newTestPipeline(t, &fakeFetcher{content: longText()}, emb, idx, store, repo)

	task := tasks.IngestionTask{
		JobID:      "job-1",
		ObjectName: "uploads/x.txt",
		FileName:   "x.txt",
		Title:      "测试文档",
		Collection: "space_job-1",
	}
	require.NoError(t, store.Start(ctx, task.JobID, task.Title))

	doc, err := p.Ingest(ctx, task)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.NotEmpty(t, doc.DocID)
	assert.NotEmpty(t, doc.Checksum)

	job, err := store.Get(ctx, task.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, job.Status)
	assert.Equal(t, model.StageDone, job.Stage)
	assert.Equal(t, 100, job.Percent)
	assert.GreaterOrEqual(t, job.TotalChunks, 3)
	assert.False(t, job.Recovered)

	// 索引中的记录数与分块总数一致，且同属一个 doc_id，chunk_index 连续
	records := idx.records[task.Collection]
	require.Len(t, records, job.TotalChunks)
	for i, rec := range records {
		assert.Equal(t, doc.DocID, rec.Payload.DocID)
		assert.Equal(t, i, rec.Payload.ChunkIndex)
		assert.Equal(t, task.Title, rec.Payload.Title)
	}
	assert.Equal(t, job.TotalChunks, doc.ChunkCount)
	assert.Equal(t, emb.Dimension(), idx.ensuredDims[task.Collection])

	// 文档元数据已落库
	saved, err := repo.FindByDocID(doc.DocID)
	require.NoError(t, err)
	require.NotNil(t, saved)
}

func TestIngestEmbeddingFailureAbortsJob(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	idx := newFakeIndex()
	repo := &fakeDocRepo{}
	// 第二个批次向量化失败
	emb := &fakeEmbedder{dim: 4, failCall: 2}
	p := newTestPipeline(t, &fakeFetcher{content: longText()}, emb, idx, store, repo)

	task := tasks.IngestionTask{
		JobID:      "job-2",
		ObjectName: "uploads/y.txt",
		FileName:   "y.txt",
		Title:      "失败文档",
		Collection: "space_job-2",
	}
	require.NoError(t, store.Start(ctx, task.JobID, task.Title))

	_, err := p.Ingest(ctx, task)
	require.Error(t, err)

	job, gerr := store.Get(ctx, task.JobID)
	require.NoError(t, gerr)
	assert.Equal(t, model.StatusError, job.Status)
	assert.NotEmpty(t, job.Message)

	// 第一个批次已经写入的记录保持原样
	assert.Len(t, idx.records[task.Collection], 2)
	// 元数据不落库
	assert.Empty(t, repo.docs)
}

func TestIngestDimensionMismatchRecoversOnce(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	idx := newFakeIndex()
	idx.mismatchLeft = 1
	repo := &fakeDocRepo{}
	emb := &fakeEmbedder{dim: 4}
	p := newTestPipeline(t, &fakeFetcher{content: longText()}, emb, idx, store, repo)

	task := tasks.IngestionTask{
		JobID:      "job-3",
		ObjectName: "uploads/z.txt",
		FileName:   "z.txt",
		Title:      "恢复文档",
		Collection: "space_job-3",
	}
	require.NoError(t, store.Start(ctx, task.JobID, task.Title))

	doc, err := p.Ingest(ctx, task)
	require.NoError(t, err)

	job, gerr := store.Get(ctx, task.JobID)
	require.NoError(t, gerr)
	assert.Equal(t, model.StatusReady, job.Status)
	assert.True(t, job.Recovered, "恢复后的任务应带 recovered 标记")
	assert.Equal(t, 1, idx.dropCalls, "集合只应重建一次")
	assert.Len(t, idx.records[task.Collection], doc.ChunkCount)
}

func TestIngestSecondDimensionMismatchIsFatal(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	idx := newFakeIndex()
	idx.alwaysMismatch = true
	repo := &fakeDocRepo{}
	emb := &fakeEmbedder{dim: 4}
	p := newTestPipeline(t, &fakeFetcher{content: longText()}, emb, idx, store, repo)

	task := tasks.IngestionTask{
		JobID:      "job-4",
		ObjectName: "uploads/w.txt",
		FileName:   "w.txt",
		Title:      "两次冲突",
		Collection: "space_job-4",
	}
	require.NoError(t, store.Start(ctx, task.JobID, task.Title))

	_, err := p.Ingest(ctx, task)
	require.Error(t, err)
	assert.Equal(t, 1, idx.dropCalls, "只允许一次重建重试")

	job, gerr := store.Get(ctx, task.JobID)
	require.NoError(t, gerr)
	assert.Equal(t, model.StatusError, job.Status)
}

func TestIngestEmptyDocumentFails(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	idx := newFakeIndex()
	repo := &fakeDocRepo{}
	emb := &fakeEmbedder{dim: 4}
	p := newTestPipeline(t, &fakeFetcher{content: "   \n  "}, emb, idx, store, repo)

	task := tasks.IngestionTask{
		JobID:      "job-5",
		ObjectName: "uploads/empty.txt",
		FileName:   "empty.txt",
		Collection: "space_job-5",
	}
	require.NoError(t, store.Start(ctx, task.JobID, ""))

	_, err := p.Ingest(ctx, task)
	require.Error(t, err)

	job, gerr := store.Get(ctx, task.JobID)
	require.NoError(t, gerr)
	assert.Equal(t, model.StatusError, job.Status)
}

func TestIngestKeepsSuppliedDocID(t *testing.T) {
	ctx := context.Background()
	store := progress.NewMemoryStore()
	idx := newFakeIndex()
	repo := &fakeDocRepo{}
	emb := &fakeEmbedder{dim: 4}
	p := newTestPipeline(t, &fakeFetcher{content: "One sentence here. Another sentence there."}, emb, idx, store, repo)

	task := tasks.IngestionTask{
		JobID:      "job-6",
		DocID:      "doc-fixed",
		ObjectName: "uploads/d.txt",
		FileName:   "d.txt",
		Collection: "corpus",
	}
	require.NoError(t, store.Start(ctx, task.JobID, ""))

	doc, err := p.Ingest(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, "doc-fixed", doc.DocID)
}
