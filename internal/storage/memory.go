package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/kura/internal/fileid"
	"github.com/hyperjump/kura/internal/models"
	"github.com/hyperjump/kura/internal/vector"
)

// MemoryStorage implements Storage in process memory. It is used by tests
// and by one-shot runs that do not need to persist anything.
type MemoryStorage struct {
	mu        sync.RWMutex
	meta      map[string]string
	documents map[string]*models.Document
	byPath    map[string]string
	docOrder  []string
	fragments map[string]*models.Fragment
	byDoc     map[string][]string
	index     *vector.MemoryIndex
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	index, _ := vector.NewMemoryIndex(0)
	return &MemoryStorage{
		meta:      make(map[string]string),
		documents: make(map[string]*models.Document),
		byPath:    make(map[string]string),
		fragments: make(map[string]*models.Fragment),
		byDoc:     make(map[string][]string),
		index:     index,
	}
}

func (m *MemoryStorage) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.meta[metaKeyVersion]; !ok {
		m.meta[metaKeyVersion] = models.SchemaVersion
	}
	return checkVersion(m.meta[metaKeyVersion])
}

func (m *MemoryStorage) VerifyOrSetModel(ctx context.Context, model string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.meta[metaKeyModel]
	if !ok {
		m.meta[metaKeyModel] = model
		return nil
	}
	return checkModel(stored, model)
}

func (m *MemoryStorage) GetMetaInfo(ctx context.Context) (*models.MetaInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	version, ok := m.meta[metaKeyVersion]
	if !ok {
		return nil, fmt.Errorf("meta record: %w", ErrNotFound)
	}
	return &models.MetaInfo{Version: version, EmbeddingModel: m.meta[metaKeyModel]}, nil
}

func (m *MemoryStorage) DocumentExists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byPath[path]
	return ok, nil
}

func (m *MemoryStorage) StoreDocument(ctx context.Context, path string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byPath[path]; ok {
		return "", fmt.Errorf("%s: %w", path, ErrDocumentExists)
	}
	doc := &models.Document{
		ID:        fileid.NewID(),
		Filename:  filepath.Base(path),
		FilePath:  path,
		Format:    fileType(path),
		Size:      int64(len(data)),
		Data:      append([]byte(nil), data...),
		CreatedAt: time.Now().UTC(),
	}
	m.documents[doc.ID] = doc
	m.byPath[path] = doc.ID
	m.docOrder = append(m.docOrder, doc.ID)
	return doc.ID, nil
}

func (m *MemoryStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	cp := *doc
	cp.Data = append([]byte(nil), doc.Data...)
	return &cp, nil
}

func (m *MemoryStorage) FindDocumentByPath(ctx context.Context, path string) (*models.Document, error) {
	m.mu.RLock()
	id, ok := m.byPath[path]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("document %s: %w", path, ErrNotFound)
	}
	return m.GetDocument(ctx, id)
}

func (m *MemoryStorage) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || offset >= len(m.docOrder) {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}
	end := min(offset+limit, len(m.docOrder))
	docs := make([]*models.Document, 0, end-offset)
	for _, id := range m.docOrder[offset:end] {
		cp := *m.documents[id]
		cp.Data = nil
		docs = append(docs, &cp)
	}
	return docs, nil
}

func (m *MemoryStorage) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	fragIDs := m.byDoc[id]
	for _, fid := range fragIDs {
		delete(m.fragments, fid)
	}
	if err := m.index.Remove(ctx, fragIDs); err != nil {
		return storageErr("delete document", err)
	}
	delete(m.byDoc, id)
	delete(m.byPath, doc.FilePath)
	delete(m.documents, id)
	for i, d := range m.docOrder {
		if d == id {
			m.docOrder = append(m.docOrder[:i], m.docOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStorage) StoreTextFragment(ctx context.Context, documentID string, order int, content string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[documentID]; !ok {
		return "", fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}
	for _, fid := range m.byDoc[documentID] {
		if m.fragments[fid].Order == order {
			return "", storageErr("store fragment", fmt.Errorf("order %d already stored for document %s", order, documentID))
		}
	}
	f := &models.Fragment{
		ID:         fileid.NewID(),
		DocumentID: documentID,
		Order:      order,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}
	m.fragments[f.ID] = f
	m.byDoc[documentID] = append(m.byDoc[documentID], f.ID)
	return f.ID, nil
}

func (m *MemoryStorage) GetFragmentsByDocumentID(ctx context.Context, documentID string) ([]*models.Fragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	frags := make([]*models.Fragment, 0, len(m.byDoc[documentID]))
	for _, fid := range m.byDoc[documentID] {
		cp := *m.fragments[fid]
		cp.Embedding = nil
		frags = append(frags, &cp)
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i].Order < frags[j].Order })
	return frags, nil
}

func (m *MemoryStorage) UpdateFragmentEmbedding(ctx context.Context, fragmentID string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("fragment %s: %w", fragmentID, ErrEmptyEmbedding)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.fragments[fragmentID]
	if !ok {
		return fmt.Errorf("fragment %s: %w", fragmentID, ErrNotFound)
	}
	vec := append([]float32(nil), embedding...)
	if err := m.index.Add(ctx, []string{fragmentID}, [][]float32{vec}); err != nil {
		return storageErr("update embedding", err)
	}
	f.Embedding = vec
	f.HasEmbedding = true
	return nil
}

func (m *MemoryStorage) GetFragmentsWithoutEmbeddings(ctx context.Context, limit int) ([]models.PendingFragment, error) {
	if limit <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var pending []*models.Fragment
	for _, f := range m.fragments {
		if !f.HasEmbedding {
			pending = append(pending, f)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].DocumentID != pending[j].DocumentID {
			return pending[i].DocumentID < pending[j].DocumentID
		}
		return pending[i].Order < pending[j].Order
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]models.PendingFragment, len(pending))
	for i, f := range pending {
		out[i] = models.PendingFragment{ID: f.ID, Content: f.Content}
	}
	return out, nil
}

func (m *MemoryStorage) SearchSimilar(ctx context.Context, query []float32, limit int) ([]*models.SimilarFragment, error) {
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	results, err := m.index.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*models.SimilarFragment, 0, len(results))
	for _, r := range results {
		f, ok := m.fragments[r.ID]
		if !ok {
			continue
		}
		out = append(out, &models.SimilarFragment{
			FragmentID: f.ID,
			DocumentID: f.DocumentID,
			Content:    f.Content,
			Score:      r.Score,
		})
	}
	return out, nil
}

func (m *MemoryStorage) CountDocuments(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.documents)), nil
}

func (m *MemoryStorage) CountFragments(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.fragments)), nil
}

func (m *MemoryStorage) CountFragmentsWithoutEmbeddings(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, f := range m.fragments {
		if !f.HasEmbedding {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) Close() error {
	return m.index.Close()
}
