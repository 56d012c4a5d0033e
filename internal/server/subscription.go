package server

import (
	"context"
	"errors"
	"time"

	"invoiceflow/internal/catalog"
	"invoiceflow/internal/notify"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// BackOffPolicy returns a fresh retry schedule for each reconnection.
type BackOffPolicy func() backoff.BackOff

// DefaultBackOff retries forever, from half a second up to thirty seconds
// between attempts.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Maintain keeps the catalog subscribed until ctx is done. The synchronizer
// never resubscribes by itself, so every lost channel is reported to the
// notifier and reopened here on the policy's schedule.
func Maintain(ctx context.Context, sync *catalog.Synchronizer, policy BackOffPolicy, notifier notify.Notifier, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "subscription").Logger()
	if policy == nil {
		policy = DefaultBackOff
	}

	open := func() (*catalog.Subscription, error) {
		sub, err := sync.Open(ctx)
		if errors.Is(err, catalog.ErrAlreadySubscribed) {
			return nil, backoff.Permanent(err)
		}
		return sub, err
	}
	retrying := func(err error, next time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", next).Msg("catalog subscription failed, retrying")
	}

	reconnecting := false
	for {
		sub, err := backoff.RetryNotifyWithData(open, backoff.WithContext(policy(), ctx), retrying)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if reconnecting {
			logger.Info().Msg("catalog subscription restored")
			notifier.NotifySuccess("Catalog connection restored")
		}

		select {
		case <-ctx.Done():
			sub.Close()
			return nil
		case err := <-sub.Err():
			sub.Close()
			logger.Error().Err(err).Msg("catalog subscription lost")
			notifier.NotifyError("Catalog connection lost, reconnecting")
			reconnecting = true
		}
	}
}
