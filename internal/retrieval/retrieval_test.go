package retrieval

import (
	"context"
	"strings"
	"testing"

	"askdocs-go/internal/model"
	"askdocs-go/pkg/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Dimension() int { return 3 }

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

type fakeIndex struct {
	results    []vectorindex.SearchResult
	lastK      int
	lastName   string
	lastVector []float32
}

func (f *fakeIndex) EnsureCollection(context.Context, string, int) error { return nil }
func (f *fakeIndex) Upsert(context.Context, string, []vectorindex.Record) error {
	return nil
}
func (f *fakeIndex) DropCollection(context.Context, string) error { return nil }

func (f *fakeIndex) Search(_ context.Context, name string, vector []float32, k int) ([]vectorindex.SearchResult, error) {
	f.lastName = name
	f.lastVector = vector
	f.lastK = k
	return f.results, nil
}

func TestRetrievePassesThroughResults(t *testing.T) {
	idx := &fakeIndex{results: []vectorindex.SearchResult{
		{Payload: vectorindex.Payload{DocID: "doc-a", ChunkIndex: 0, Text: "alpha", Title: "A"}, Score: 0.9},
		{Payload: vectorindex.Payload{DocID: "doc-b", ChunkIndex: 3, Text: "beta", Title: "B"}, Score: 0.5},
	}}
	r := New(fakeEmbedder{}, idx, 4)

	contexts, err := r.Retrieve(context.Background(), "corpus", "什么是 alpha")
	require.NoError(t, err)
	require.Len(t, contexts, 2)
	assert.Equal(t, "corpus", idx.lastName)
	assert.Equal(t, 4, idx.lastK)
	assert.Equal(t, "doc-a", contexts[0].DocID)
	assert.Equal(t, 3, contexts[1].ChunkIndex)
	assert.InDelta(t, 0.9, contexts[0].Score, 1e-6)

	// 查询向量做了归一化
	var norm float32
	for _, v := range idx.lastVector {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestBuildPromptWithContexts(t *testing.T) {
	contexts := []model.RetrievedContext{
		{DocID: "doc-a", ChunkIndex: 0, Text: "first chunk"},
		{DocID: "doc-b", ChunkIndex: 2, Text: "second chunk"},
	}

	messages := BuildPrompt(contexts, nil, "What happened?")
	require.Len(t, messages, 2)

	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "ONLY the provided context")
	assert.Contains(t, messages[0].Content, "[doc_id:chunk_id]")

	user := messages[1]
	assert.Equal(t, "user", user.Role)
	assert.True(t, strings.HasPrefix(user.Content, "Context:\n"))
	assert.Contains(t, user.Content, "[doc-a:0] first chunk")
	assert.Contains(t, user.Content, "[doc-b:2] second chunk")
	// 片段之间以空行分隔
	assert.Contains(t, user.Content, "first chunk\n\n[doc-b:2]")
	assert.True(t, strings.HasSuffix(user.Content, "\n\nQuestion: What happened?"))
}

func TestBuildPromptNoContext(t *testing.T) {
	messages := BuildPrompt(nil, nil, "anything?")
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1].Content, "Context:\n(no context)")
	assert.Contains(t, messages[1].Content, "Question: anything?")
}

func TestBuildPromptIncludesHistoryInOrder(t *testing.T) {
	history := []model.ChatMessage{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	messages := BuildPrompt(nil, history, "follow up")
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "earlier question", messages[1].Content)
	assert.Equal(t, "assistant", messages[2].Role)
	assert.Contains(t, messages[3].Content, "follow up")
}
