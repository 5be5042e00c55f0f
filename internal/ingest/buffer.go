package ingest

/*
Буфер записи событий api_events.

- Non-blocking: Offer не ждет БД, события уходят в канал. При переполнении отказ
  (load shedding), HTTP отвечает 503.
- Batching: воркер копит события и пишет пачкой (multi-row INSERT) по размеру
  или по таймеру.
- Drain: Stop закрывает вход, воркер вычитывает остаток и делает финальный flush.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

// BatchWriter определяет, куда физически сохраняются события
type BatchWriter interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []domain.APIEvent) error
}

// FlushHook вызывается после успешной записи пачки.
type FlushHook func(ctx context.Context, written int)

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	OnFlush       FlushHook
}

type Buffer struct {
	ch     chan domain.APIEvent
	repo   BatchWriter
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	// closeMu: Offer держит RLock на время отправки, Stop берет Lock перед close(ch)
	closeMu sync.RWMutex
	closed  bool
}

func NewBuffer(repo BatchWriter, opts Options, logger *zap.Logger) *Buffer {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	return &Buffer{
		ch:     make(chan domain.APIEvent, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.With(zap.String("mod", "ingest")),
	}
}

func (b *Buffer) Start() {
	b.wg.Add(1)
	go b.worker()
}

// Stop «запирает» вход и ждет, пока воркер всё допишет.
func (b *Buffer) Stop() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	b.logger.Info("stopping ingest: closing channel and flushing buffer...")
	close(b.ch)
	b.closeMu.Unlock()

	b.wg.Wait()
	b.logger.Info("ingest stopped gracefully")
}

// Offer ставит событие в очередь. false, буфер остановлен или переполнен.
func (b *Buffer) Offer(event domain.APIEvent) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.closeMu.RLock()
	defer b.closeMu.RUnlock()

	if b.closed {
		b.logger.Warn("event dropped: ingest is stopping", zap.String("client_id", event.ClientID))
		return false
	}

	select {
	case b.ch <- event:
		return true
	default:
		b.logger.Error("ingest_buffer_overflow",
			zap.String("client_id", event.ClientID),
			zap.String("endpoint", event.Endpoint),
		)
		return false
	}
}

func (b *Buffer) worker() {
	defer b.wg.Done()

	batch := make([]domain.APIEvent, 0, b.opts.BatchSize)
	ticker := time.NewTicker(b.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: при остановке основной контекст уже может быть закрыт
		ctx := context.Background()
		if err := b.repo.WriteBatch(ctx, batch); err != nil {
			b.logger.Error("ingest flush failed", zap.Int("events", len(batch)), zap.Error(err))
		} else if b.opts.OnFlush != nil {
			b.opts.OnFlush(ctx, len(batch))
		}
		batch = make([]domain.APIEvent, 0, b.opts.BatchSize)
	}

	for {
		select {
		case event, ok := <-b.ch:
			if !ok {
				// Канал закрыт в Stop: остаток уже вычитан, финальный сброс
				flush()
				b.logger.Info("ingest worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= b.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
