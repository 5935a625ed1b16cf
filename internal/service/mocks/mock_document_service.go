package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/0SalvadOr0/Intus-sub001/internal/model"
	"github.com/0SalvadOr0/Intus-sub001/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, category model.Category, r io.Reader, in service.UploadInput) (*service.UploadResult, error) {
	args := m.Called(ctx, category, r, in)
	res, _ := args.Get(0).(*service.UploadResult)
	return res, args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, category model.Category) ([]model.Document, error) {
	args := m.Called(ctx, category)
	docs, _ := args.Get(0).([]model.Document)
	return docs, args.Error(1)
}

func (m *MockDocumentService) ListAll(ctx context.Context) ([]model.Document, error) {
	args := m.Called(ctx)
	docs, _ := args.Get(0).([]model.Document)
	return docs, args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, category model.Category, filename string) error {
	args := m.Called(ctx, category, filename)
	return args.Error(0)
}

func (m *MockDocumentService) Counts(ctx context.Context) (map[model.Category]int, error) {
	args := m.Called(ctx)
	counts, _ := args.Get(0).(map[model.Category]int)
	return counts, args.Error(1)
}
