package notificator

import (
	"context"

	"qr-ordering/internal/connections/rabbitmq"
	"qr-ordering/internal/microservices/notificator/service"
)

// Start blocks until ctx is done or the broker drops the consumer.
func Start(ctx context.Context, rmqClient *rabbitmq.Client, exchange string) error {
	return service.New(rmqClient, exchange).NotificatorService.Notify(ctx)
}
