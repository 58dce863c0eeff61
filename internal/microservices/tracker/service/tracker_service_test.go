package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/tracker/models"
	"qr-ordering/internal/microservices/tracker/repository"
)

type fakeRepo struct {
	events    []models.TimelineEvent
	gotLimit  int
	gotOffset int
}

func (f *fakeRepo) GetOrderView(_ context.Context, restaurantID string, orderID int64) (models.OrderView, error) {
	if restaurantID != "42" || orderID != 1 {
		return models.OrderView{}, repository.ErrNotFound
	}
	return models.OrderView{OrderID: 1, Token: 3, Status: domain.StatusReady}, nil
}

func (f *fakeRepo) GetOrderTimeline(_ context.Context, restaurantID string, orderID int64, limit, offset int) ([]models.TimelineEvent, error) {
	f.gotLimit, f.gotOffset = limit, offset
	if restaurantID != "42" || orderID != 1 {
		return []models.TimelineEvent{}, nil
	}
	return f.events, nil
}

func TestTimelineClampsPaging(t *testing.T) {
	repo := &fakeRepo{events: []models.TimelineEvent{{Status: domain.StatusPending}, {Status: domain.StatusPreparing}}}
	s := NewTrackerService(repo)

	events, err := s.GetOrderTimeline(context.Background(), "42", 1, 0, -4)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, defaultTimelineLimit, repo.gotLimit)
	assert.Zero(t, repo.gotOffset)

	_, err = s.GetOrderTimeline(context.Background(), "42", 1, 10_000, 0)
	require.NoError(t, err)
	assert.Equal(t, maxTimelineLimit, repo.gotLimit)
}

func TestTimelineOfForeignOrderIsNotFound(t *testing.T) {
	s := NewTrackerService(&fakeRepo{})
	_, err := s.GetOrderTimeline(context.Background(), "99", 1, 10, 0)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.GetOrderView(context.Background(), "99", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
