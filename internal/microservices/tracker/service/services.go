package service

import "qr-ordering/internal/microservices/tracker/repository"

type Service struct {
	TrackerService TrackerServiceInterface
}

func New(repo repository.TrackerRepoInterface) *Service {
	return &Service{TrackerService: NewTrackerService(repo)}
}
