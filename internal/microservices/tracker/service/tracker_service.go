package service

import (
	"context"

	"qr-ordering/internal/microservices/tracker/models"
	"qr-ordering/internal/microservices/tracker/repository"
)

const (
	defaultTimelineLimit = 50
	maxTimelineLimit     = 200
)

type TrackerServiceInterface interface {
	GetOrderView(ctx context.Context, restaurantID string, orderID int64) (models.OrderView, error)
	GetOrderTimeline(ctx context.Context, restaurantID string, orderID int64, limit, offset int) ([]models.TimelineEvent, error)
}

type TrackerService struct {
	repo repository.TrackerRepoInterface
}

func NewTrackerService(repo repository.TrackerRepoInterface) *TrackerService {
	return &TrackerService{repo: repo}
}

func (s *TrackerService) GetOrderView(ctx context.Context, restaurantID string, orderID int64) (models.OrderView, error) {
	return s.repo.GetOrderView(ctx, restaurantID, orderID)
}

// GetOrderTimeline returns the status history oldest first. An order with no
// history yet is reported as not found rather than as an empty list.
func (s *TrackerService) GetOrderTimeline(ctx context.Context, restaurantID string, orderID int64, limit, offset int) ([]models.TimelineEvent, error) {
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	if limit > maxTimelineLimit {
		limit = maxTimelineLimit
	}
	if offset < 0 {
		offset = 0
	}
	events, err := s.repo.GetOrderTimeline(ctx, restaurantID, orderID, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 && offset == 0 {
		return nil, repository.ErrNotFound
	}
	return events, nil
}
