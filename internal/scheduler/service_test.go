package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/chimera-labs/trend-skills/internal/config"
	"github.com/chimera-labs/trend-skills/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCapturer is a mock implementation of SnapshotCapturer
type MockCapturer struct {
	mock.Mock
}

func (m *MockCapturer) CaptureSnapshot(ctx context.Context) (*models.TrendIngestResponse, string, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*models.TrendIngestResponse)
	return resp, args.String(1), args.Error(2)
}

func TestService_StartRegistersSchedule(t *testing.T) {
	svc, err := NewService(&config.Config{IngestSchedule: "0 0 */4 * * *", TimeZone: "UTC"}, &MockCapturer{})
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.Equal(t, 1, svc.Entries())
}

func TestService_StartDisabled(t *testing.T) {
	svc, err := NewService(&config.Config{}, &MockCapturer{})
	require.NoError(t, err)

	require.NoError(t, svc.Start())
	defer svc.Stop()

	assert.Equal(t, 0, svc.Entries())
}

func TestService_InvalidSchedule(t *testing.T) {
	svc, err := NewService(&config.Config{IngestSchedule: "whenever"}, &MockCapturer{})
	require.NoError(t, err)

	assert.Error(t, svc.Start())
}

func TestNewService_InvalidTimeZone(t *testing.T) {
	_, err := NewService(&config.Config{TimeZone: "Mars/Olympus"}, &MockCapturer{})
	assert.Error(t, err)
}

func TestService_RunOnce(t *testing.T) {
	capturer := &MockCapturer{}
	capturer.On("CaptureSnapshot", mock.Anything).
		Return(&models.TrendIngestResponse{Items: []models.TrendFeedItem{{TrendID: "a"}}}, "trends/snapshots/x.json", nil).Once()
	capturer.On("CaptureSnapshot", mock.Anything).
		Return(nil, "", errors.New("storage offline")).Once()

	svc, err := NewService(&config.Config{}, capturer)
	require.NoError(t, err)

	assert.NoError(t, svc.RunOnce(context.Background()))
	assert.ErrorContains(t, svc.RunOnce(context.Background()), "storage offline")
	capturer.AssertExpectations(t)
}
