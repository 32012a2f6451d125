package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/noteduco342/campus-stories-backend/internal/storage"
)

// MockBlobStore is an in-memory blob store for testing. Setting
// failContentType makes uploads of that content type fail, which is how the
// batch-abort paths are driven.
type MockBlobStore struct {
	mu              sync.Mutex
	objects         map[string][]byte
	contentTypes    map[string]string
	failContentType string
}

func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (m *MockBlobStore) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectStat, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectStat{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failContentType != "" && contentType == m.failContentType {
		return storage.ObjectStat{}, errors.New("connection refused")
	}
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return storage.ObjectStat{Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *MockBlobStore) DeleteObject(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	delete(m.contentTypes, key)
	return nil
}

func (m *MockBlobStore) PublicURL(key string) string {
	return "http://localhost:9000/stories-media/" + key
}

func (m *MockBlobStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *MockBlobStore) contentTypeOf(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contentTypes[key]
}
