// Package broadcast fans messages out to every user recorded in the
// broadcast ledger, processed as background jobs so a large audience never
// blocks the conversation loop.
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	telebot "gopkg.in/telebot.v3"

	"github.com/botweaver/botweaver/pkg/metrics"
)

const (
	TaskTypeBroadcast = "broadcast:send"

	QueueDefault = "default"
)

// Payload carries the message a broadcast task delivers.
type Payload struct {
	Text string `json:"text"`
}

// NewTask builds a broadcast task.
func NewTask(text string) (*asynq.Task, error) {
	payload, err := json.Marshal(Payload{Text: text})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBroadcast, payload, asynq.Queue(QueueDefault)), nil
}

// Enqueuer submits broadcast tasks.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(redisOpt asynq.RedisConnOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(redisOpt)}
}

// Enqueue schedules a broadcast of the given text.
func (e *Enqueuer) Enqueue(ctx context.Context, text string) error {
	task, err := NewTask(text)
	if err != nil {
		return fmt.Errorf("build broadcast task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue broadcast task: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}

// Sender is the subset of telebot.Bot used for deliveries.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Audience lists the user ids a broadcast fans out to.
type Audience interface {
	All(ctx context.Context) ([]int64, error)
}

// Handler processes broadcast tasks by walking the ledger.
type Handler struct {
	ledger Audience
	sender Sender
	log    *slog.Logger
}

// NewHandler wires a broadcast task handler.
func NewHandler(l Audience, sender Sender, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ledger: l, sender: sender, log: log}
}

// ProcessTask delivers the payload to every ledger user. Individual send
// failures (blocked bot, deleted account) are logged and skipped; only a
// ledger read failure fails the task for retry.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload Payload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode broadcast payload: %w", err)
	}

	ids, err := h.ledger.All(ctx)
	if err != nil {
		return fmt.Errorf("read broadcast ledger: %w", err)
	}

	delivered := 0
	for _, id := range ids {
		if _, err := h.sender.Send(&telebot.User{ID: id}, payload.Text); err != nil {
			h.log.Warn("broadcast delivery failed",
				slog.Int64("user_id", id), slog.Any("error", err))
			metrics.RecordBroadcast("failed")
			continue
		}
		delivered++
		metrics.RecordBroadcast("delivered")
	}

	h.log.Info("broadcast complete",
		slog.Int("audience", len(ids)), slog.Int("delivered", delivered))
	return nil
}

// Worker runs the broadcast queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

// NewWorker constructs a Worker backed by an asynq.Server instance.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, handler *Handler, log *slog.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:      map[string]int{QueueDefault: 1},
		Concurrency: concurrency,
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeBroadcast, handler)

	return &Worker{server: server, mux: mux, log: log}
}

// Run starts the underlying asynq server to process tasks.
func (w *Worker) Run() error {
	if w.log != nil {
		w.log.Info("broadcast worker: starting processing loop")
	}
	return w.server.Run(w.mux)
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown() {
	if w.log != nil {
		w.log.Info("broadcast worker: shutting down")
	}
	w.server.Shutdown()
}
