package data

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// mockProvider is a testify mock implementing every Provider capability.
type mockProvider struct {
	mock.Mock
}

func newMockProvider() *mockProvider {
	return &mockProvider{}
}

func (m *mockProvider) Read(ctx context.Context, values []model.Value) error {
	args := m.Called(ctx, values)
	return args.Error(0)
}

func (m *mockProvider) Write(ctx context.Context, values []model.Value, mode model.WriteMode) error {
	args := m.Called(ctx, values, mode)
	return args.Error(0)
}

func (m *mockProvider) Execute(ctx context.Context, uri model.URI, data []byte) error {
	args := m.Called(ctx, uri, data)
	return args.Error(0)
}

func (m *mockProvider) Create(ctx context.Context, instanceID model.ID) error {
	args := m.Called(ctx, instanceID)
	return args.Error(0)
}

func (m *mockProvider) Delete(ctx context.Context, instanceID model.ID) error {
	args := m.Called(ctx, instanceID)
	return args.Error(0)
}

func (m *mockProvider) DeleteResourceInstance(ctx context.Context, uri model.URI) error {
	args := m.Called(ctx, uri)
	return args.Error(0)
}

func (m *mockProvider) ResourceInstances(ctx context.Context, instanceID, resourceID model.ID) ([]model.ID, error) {
	args := m.Called(ctx, instanceID, resourceID)
	ids, _ := args.Get(0).([]model.ID)
	return ids, args.Error(1)
}
