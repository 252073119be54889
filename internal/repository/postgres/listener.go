package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Listen держит выделенное соединение с LISTEN на ChangesChannel и раздает
// изменения подписчикам. При обрыве подписчики получают ошибку, а после
// переподключения текущие значения их записей перечитываются. Возвращается
// после отмены ctx.
func (r *EntitlementRepository) Listen(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	b.MaxInterval = 30 * time.Second

	reconnect := false
	for {
		err := r.listenOnce(ctx, func() {
			b.Reset()
			if reconnect {
				r.resync(ctx)
			}
			reconnect = true
		})
		if ctx.Err() != nil {
			return nil
		}

		r.broker.Fail(err)
		wait := b.NextBackOff()
		r.log.Errorw("Entitlement change listener failed", "error", err, "retryIn", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (r *EntitlementRepository) listenOnce(ctx context.Context, connected func()) error {
	pooled, err := r.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	// соединение с LISTEN не возвращается в пул
	conn := pooled.Hijack()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangesChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ChangesChannel, err)
	}
	r.log.Infow("Listening for entitlement changes", "channel", ChangesChannel)
	connected()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		e, err := decodeChange(n.Payload)
		if err != nil {
			r.log.Warnw("Skipping malformed entitlement notification", "error", err)
			continue
		}
		r.broker.Publish(e)
	}
}

// resync перечитывает записи всех подписчиков после переподключения
func (r *EntitlementRepository) resync(ctx context.Context) {
	for _, userID := range r.broker.UserIDs() {
		e, err := r.Get(ctx, userID)
		if err != nil {
			r.log.Warnw("Failed to resync entitlement", "error", err, "userID", userID)
			continue
		}
		r.broker.Publish(*e)
	}
}
