package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrArtifactMiss is returned when no upstream artifact is recorded for a document.
var ErrArtifactMiss = errors.New("artifact not found")

// ArtifactStore remembers upstream artifact references (e.g. a vector store id)
// per document so a later extraction pass can reuse them.
type ArtifactStore interface {
	GetArtifact(ctx context.Context, documentID string) (string, error)
	PutArtifact(ctx context.Context, documentID, ref string) error
}

// MemoryArtifactStore is a process-local ArtifactStore.
type MemoryArtifactStore struct {
	mu   sync.RWMutex
	refs map[string]string
}

func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{refs: map[string]string{}}
}

func (s *MemoryArtifactStore) GetArtifact(_ context.Context, documentID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[documentID]
	if !ok {
		return "", ErrArtifactMiss
	}
	return ref, nil
}

func (s *MemoryArtifactStore) PutArtifact(_ context.Context, documentID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[documentID] = ref
	return nil
}
