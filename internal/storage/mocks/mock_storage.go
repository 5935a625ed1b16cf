package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/0SalvadOr0/Intus-sub001/internal/model"
	"github.com/0SalvadOr0/Intus-sub001/internal/storage"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Save(ctx context.Context, category model.Category, storedName string, r io.Reader) (storage.FileInfo, error) {
	args := m.Called(ctx, category, storedName, r)
	if f, ok := args.Get(0).(func(context.Context, model.Category, string, io.Reader) storage.FileInfo); ok {
		return f(ctx, category, storedName, r), args.Error(1)
	}
	return args.Get(0).(storage.FileInfo), args.Error(1)
}

func (m *MockStore) Open(ctx context.Context, category model.Category, filename string) (io.ReadCloser, error) {
	args := m.Called(ctx, category, filename)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockStore) List(ctx context.Context, category model.Category) ([]storage.FileInfo, error) {
	args := m.Called(ctx, category)
	files, _ := args.Get(0).([]storage.FileInfo)
	return files, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, category model.Category, filename string) error {
	args := m.Called(ctx, category, filename)
	return args.Error(0)
}

func (m *MockStore) Counts(ctx context.Context) (map[model.Category]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[model.Category]int)
	return counts, args.Error(1)
}

type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Put(ctx context.Context, category model.Category, name string, r io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, category, name, r, size, contentType)
	return args.Error(0)
}

func (m *MockMirror) Remove(ctx context.Context, category model.Category, name string) error {
	args := m.Called(ctx, category, name)
	return args.Error(0)
}
