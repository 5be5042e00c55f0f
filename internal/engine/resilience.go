package engine

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ListenSignalsResilient: «живучая» подписка на канал Redis.
// Переподписывается после обрывов, каждое сообщение отдает в onMessage.
func ListenSignalsResilient(
	ctx context.Context,
	rdb *redis.Client,
	logger *zap.Logger,
	channel string,
	onMessage func(payload string),
) {
	for {
		pubsub := rdb.Subscribe(ctx, channel)

		// Проверка успешности подписки
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to subscribe", zap.String("chan", channel), zap.Error(err))
			if !sleepCtx(ctx, 5*time.Second) {
				return
			}
			continue
		}
		logger.Info("subscribed to refresh signals", zap.String("chan", channel))

		ch := pubsub.Channel()

	loop:
		for {
			select {
			case <-ctx.Done():
				pubsub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break loop // Канал закрыт, идем на переподключение
				}
				onMessage(msg.Payload)
			}
		}

		pubsub.Close()
		if !sleepCtx(ctx, time.Second) {
			return
		}
	}
}

// RemoteTrigger превращает сигналы из Redis в ручные обновления дашборда.
type RemoteTrigger struct {
	rdb     *redis.Client
	channel string
	ctrl    *Controller
	logger  *zap.Logger
}

func NewRemoteTrigger(rdb *redis.Client, channel string, ctrl *Controller, logger *zap.Logger) *RemoteTrigger {
	return &RemoteTrigger{
		rdb:     rdb,
		channel: channel,
		ctrl:    ctrl,
		logger:  logger.Named("remote-trigger"),
	}
}

// Start блокируется до отмены ctx.
func (t *RemoteTrigger) Start(ctx context.Context) {
	ListenSignalsResilient(ctx, t.rdb, t.logger, t.channel, func(payload string) {
		accepted := t.ctrl.Trigger(SourceRemote)
		t.logger.Debug("refresh signal received",
			zap.String("payload", payload),
			zap.Bool("accepted", accepted))
	})
}

// PublishRefresh просит все дашборды, слушающие канал, обновиться.
func PublishRefresh(ctx context.Context, rdb *redis.Client, channel, reason string) error {
	return rdb.Publish(ctx, channel, reason).Err()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
