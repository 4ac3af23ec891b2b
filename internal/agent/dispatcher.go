package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hcplus/scheduling-agent/pkg/logging"
)

// TurnProcessor is the downstream engine the dispatcher feeds. *Service
// satisfies it.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, sessionID, utterance string) (TurnResult, error)
}

// ErrDispatcherClosed indicates the dispatcher is no longer accepting work.
var ErrDispatcherClosed = errors.New("agent: dispatcher closed")

// queueClient moves typed turn jobs; each implementation owns its own wire
// format, so the dispatcher never sees raw message bodies.
type queueClient interface {
	Send(ctx context.Context, job turnJob) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]turnDelivery, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type turnJob struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Utterance string `json:"utterance"`
}

// turnDelivery is one received job plus whatever the queue needs to
// acknowledge it.
type turnDelivery struct {
	Job           turnJob
	ReceiptHandle string
}

type dispatchResult struct {
	result TurnResult
	err    error
}

// Dispatcher routes turns through a queue before invoking the conversation
// engine. This lets the service point at LocalStack SQS during development
// and swap to AWS SQS in production without touching the HTTP handlers,
// while the in-memory queue keeps single-node deployments dependency-free.
type Dispatcher struct {
	processor TurnProcessor
	queue     queueClient
	logger    *logging.Logger

	cfg dispatcherConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	pending sync.Map // jobID -> chan dispatchResult
}

var _ TurnProcessor = (*Dispatcher)(nil)

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // messages
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
)

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// DispatcherOption configures the dispatcher.
type DispatcherOption func(*dispatcherConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for ReceiveMessage calls.
func WithReceiveWaitSeconds(seconds int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many messages each poll should return.
func WithReceiveBatchSize(size int) DispatcherOption {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// NewDispatcher wires a queue-backed dispatcher around the supplied engine.
func NewDispatcher(processor TurnProcessor, queue queueClient, logger *logging.Logger, opts ...DispatcherOption) *Dispatcher {
	if processor == nil {
		panic("agent: processor cannot be nil")
	}
	if queue == nil {
		panic("agent: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := dispatcherConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		processor: processor,
		queue:     queue,
		logger:    logger,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		d.wg.Add(1)
		go d.runWorker(i + 1)
	}

	return d
}

// ProcessTurn enqueues the turn and blocks until a worker completes it.
func (d *Dispatcher) ProcessTurn(ctx context.Context, sessionID, utterance string) (TurnResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	job := turnJob{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Utterance: utterance,
	}

	resultCh := make(chan dispatchResult, 1)
	d.pending.Store(job.ID, resultCh)
	defer d.pending.Delete(job.ID)

	if err := d.queue.Send(ctx, job); err != nil {
		return TurnResult{}, fmt.Errorf("agent: failed to enqueue turn: %w", err)
	}

	select {
	case <-ctx.Done():
		return TurnResult{}, ctx.Err()
	case res := <-resultCh:
		return res.result, res.err
	}
}

// Shutdown stops worker goroutines and notifies any pending callers.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	d.pending.Range(func(key, value any) bool {
		if ch, ok := value.(chan dispatchResult); ok {
			select {
			case ch <- dispatchResult{err: ErrDispatcherClosed}:
			default:
			}
		}
		d.pending.Delete(key)
		return true
	})

	return nil
}

func (d *Dispatcher) runWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Debug("turn dispatcher worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-d.ctx.Done():
			d.logger.Debug("turn dispatcher worker stopping", "worker_id", workerID)
			return
		default:
		}

		deliveries, err := d.queue.Receive(d.ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("failed to receive turn jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, delivery := range deliveries {
			d.handleDelivery(delivery)
		}
	}
}

func (d *Dispatcher) handleDelivery(delivery turnDelivery) {
	job := delivery.Job
	result, err := d.processor.ProcessTurn(d.ctx, job.SessionID, job.Utterance)

	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if delErr := d.queue.Delete(deleteCtx, delivery.ReceiptHandle); delErr != nil {
		d.logger.Error("failed to delete turn job", "error", delErr)
	}

	d.deliverResult(job.ID, result, err)
}

func (d *Dispatcher) deliverResult(jobID string, result TurnResult, err error) {
	value, ok := d.pending.Load(jobID)
	if !ok {
		d.logger.Debug("no waiting caller for turn job", "job_id", jobID)
		return
	}

	ch, ok := value.(chan dispatchResult)
	if !ok {
		d.logger.Error("turn dispatcher pending map corrupted", "job_id", jobID)
		d.pending.Delete(jobID)
		return
	}

	select {
	case ch <- dispatchResult{result: result, err: err}:
	default:
	}
}
