package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/turtacn/marketguard/internal/domain/models"
	"github.com/turtacn/marketguard/internal/domain/service"
)

// MockKVStore is a mock implementation of service.KVStore
type MockKVStore struct {
	mock.Mock
}

func (m *MockKVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	var value []byte
	if v := args.Get(0); v != nil {
		value = v.([]byte)
	}
	return value, args.Bool(1), args.Error(2)
}

func (m *MockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockKVStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockAlertHandler is a mock implementation of service.AlertHandler
type MockAlertHandler struct {
	mock.Mock
}

func (m *MockAlertHandler) HandleRateLimitAlert(ctx context.Context, alert models.RateLimitAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

var (
	_ service.KVStore      = (*MockKVStore)(nil)
	_ service.AlertHandler = (*MockAlertHandler)(nil)
)
