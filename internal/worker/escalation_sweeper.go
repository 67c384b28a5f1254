package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/application/dispatcher"
	"github.com/hrsuite/approval-engine/internal/application/port"
	"github.com/hrsuite/approval-engine/internal/domain/event"
)

// EscalationSweeperConfig holds configuration for the escalation sweeper
type EscalationSweeperConfig struct {
	SweepInterval time.Duration
	BatchSize     int
}

// DefaultEscalationSweeperConfig returns default configuration
func DefaultEscalationSweeperConfig() EscalationSweeperConfig {
	return EscalationSweeperConfig{
		SweepInterval: 1 * time.Minute,
		BatchSize:     100,
	}
}

// EscalationSweeper periodically flags overdue documents. It only ever sets
// the escalation flag; document status and lines are left to the engine, so
// a sweep can never race an approver's decision into a bad state.
type EscalationSweeper struct {
	config EscalationSweeperConfig

	docRepo    port.DocumentRepository
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu             sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
	isRunning      bool
	escalatedCount int
	failedCount    int
}

// NewEscalationSweeper creates a new escalation sweeper
func NewEscalationSweeper(
	config EscalationSweeperConfig,
	docRepo port.DocumentRepository,
	d dispatcher.Dispatcher,
	logger *zap.Logger,
) *EscalationSweeper {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultEscalationSweeperConfig().SweepInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultEscalationSweeperConfig().BatchSize
	}
	return &EscalationSweeper{
		config:     config,
		docRepo:    docRepo,
		dispatcher: d,
		logger:     logger,
		now:        time.Now,
	}
}

// Start begins the sweep loop
func (w *EscalationSweeper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("escalation sweeper already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("EscalationSweeper started",
		zap.Duration("sweep_interval", w.config.SweepInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.sweepLoop()

	return nil
}

// Stop gracefully terminates the sweeper
func (w *EscalationSweeper) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	w.logger.Info("EscalationSweeper stopped",
		zap.Int("escalated_count", w.escalatedCount),
		zap.Int("failed_count", w.failedCount))

	return nil
}

// Name returns the worker name for identification
func (w *EscalationSweeper) Name() string {
	return "EscalationSweeper"
}

func (w *EscalationSweeper) sweepLoop() {
	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Sweep once immediately so a restart does not delay overdue documents
	// by a full interval.
	w.Sweep(w.ctx)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(w.ctx)
		}
	}
}

// Sweep runs one escalation pass. A failure on one document is logged and
// skipped; the rest of the batch still gets processed.
func (w *EscalationSweeper) Sweep(ctx context.Context) {
	now := w.now()

	docs, err := w.docRepo.FindOverdueActive(ctx, now, w.config.BatchSize)
	if err != nil {
		w.logger.Error("Escalation sweep query failed", zap.Error(err))
		return
	}
	if len(docs) == 0 {
		return
	}

	w.logger.Info("Escalation sweep found overdue documents", zap.Int("count", len(docs)))

	for _, doc := range docs {
		if err := w.docRepo.MarkEscalated(ctx, doc.ID); err != nil {
			w.mu.Lock()
			w.failedCount++
			w.mu.Unlock()
			w.logger.Error("Failed to escalate document",
				zap.Int64("document_id", doc.ID),
				zap.Error(err))
			continue
		}

		doc.Escalated = true
		w.mu.Lock()
		w.escalatedCount++
		w.mu.Unlock()

		w.logger.Info("Document escalated",
			zap.Int64("document_id", doc.ID),
			zap.String("doc_number", doc.DocNumber),
			zap.Timep("deadline_at", doc.DeadlineAt))

		if w.dispatcher != nil {
			w.dispatcher.DispatchAsync(ctx, event.FromDocument(event.TypeDocumentEscalated, doc))
		}
	}
}

// EscalatedCount returns how many documents this sweeper has flagged
func (w *EscalationSweeper) EscalatedCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.escalatedCount
}
