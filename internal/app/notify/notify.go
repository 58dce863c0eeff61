package notify

import (
	"context"
	"fmt"

	"qr-ordering/internal/common/config"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/connections/rabbitmq"
	"qr-ordering/internal/microservices/notificator"
)

// Run logs every order event relayed over the broker until ctx is cancelled.
func Run(ctx context.Context, cfg config.MQ) error {
	lg := logger.New("notification-subscriber")

	rmq, err := rabbitmq.Dial(cfg)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer rmq.Close()
	if err := rmq.DeclareFanout(cfg.Exchange); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	lg.Info("service_started", map[string]any{"exchange": cfg.Exchange})
	return notificator.Start(ctx, rmq, cfg.Exchange)
}
