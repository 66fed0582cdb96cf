package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
)

// stubEmbedder 固定向量的 Embedder，可注入错误。
type stubEmbedder struct {
	mu     sync.Mutex
	vector []float64
	err    error
	calls  int
}

func (s *stubEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	vec := s.vector
	if vec == nil {
		vec = []float64{0.1, 0.2, 0.3}
	}
	out := make([][]float64, 0, len(texts))
	for range texts {
		out = append(out, vec)
	}
	return out, nil
}

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// stubVectorStore 返回预置结果的 VectorStore。resultsByKB 非空时按知识库分别返回。
type stubVectorStore struct {
	mu          sync.Mutex
	results     []*VectorSearchResult
	resultsByKB map[string][]*VectorSearchResult
	searchErr   error
	insertErr   error

	searchCalls  int
	lastParams   *VectorSearchParams
	inserted     []*VectorSegment
	deletedDocs  []string
	ensureCalled bool
}

func (s *stubVectorStore) EnsureKnowledgeSegmentsCollection(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureCalled = true
	return nil
}

func (s *stubVectorStore) SearchSegments(_ context.Context, params *VectorSearchParams) ([]*VectorSearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	s.lastParams = params
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if s.resultsByKB != nil {
		return s.resultsByKB[params.KnowledgeBaseID], nil
	}
	return s.results, nil
}

func (s *stubVectorStore) InsertSegments(_ context.Context, _ string, segments []*VectorSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, segments...)
	return nil
}

func (s *stubVectorStore) DeleteSegmentsByDocument(_ context.Context, _, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedDocs = append(s.deletedDocs, documentID)
	return nil
}

func (s *stubVectorStore) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls
}

// stubLLM 按调用顺序返回预置响应，耗尽后返回最后一条。err 非空时恒定失败。
type stubLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

func (s *stubLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("no scripted response")
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func (s *stubLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// stubQueryCache 内存版 QueryCache。
type stubQueryCache struct {
	mu         sync.Mutex
	embeddings map[string][]float32
	intents    map[string]string
}

func newStubQueryCache() *stubQueryCache {
	return &stubQueryCache{
		embeddings: make(map[string][]float32),
		intents:    make(map[string]string),
	}
}

func (s *stubQueryCache) GetEmbedding(_ context.Context, model, query string) ([]float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.embeddings[model+":"+query]
	return v, ok
}

func (s *stubQueryCache) SetEmbedding(_ context.Context, model, query string, vector []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddings[model+":"+query] = vector
}

func (s *stubQueryCache) GetIntent(_ context.Context, query string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.intents[query]
	return v, ok
}

func (s *stubQueryCache) SetIntent(_ context.Context, query, label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[query] = label
}

func vectorResult(id, docID string, position int64, content string, score float32) *VectorSearchResult {
	return &VectorSearchResult{
		ID:          id,
		DocumentID:  docID,
		Position:    position,
		TextContent: content,
		Score:       score,
	}
}

func testOptions() Options {
	return Options{EmbeddingModel: "test-embedding"}.withDefaults()
}
