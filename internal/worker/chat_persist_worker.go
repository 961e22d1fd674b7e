package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"financegpt/internal/model"
	"financegpt/internal/pkg/logger"
	"financegpt/internal/platform/rabbitmq"
)

var ErrInvalidPayload = errors.New("invalid chat payload")

const defaultRetryDelay = time.Second

type ChatPersister interface {
	Persist(ctx context.Context, chat *model.Chat) error
}

// ChatPersistWorker drains the chat persist queue. Every delivery is written
// through the persister, which applies the retention limit.
type ChatPersistWorker struct {
	conn      *amqp.Connection
	persister ChatPersister
	queueName string
	log       *logger.Logger

	retryDelay time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewChatPersistWorker(conn *amqp.Connection, persister ChatPersister, queueName string, log *logger.Logger) *ChatPersistWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &ChatPersistWorker{
		conn:       conn,
		persister:  persister,
		queueName:  queueName,
		log:        log.With("worker", "chat_persist", "queue", queueName),
		retryDelay: defaultRetryDelay,
	}
}

func (w *ChatPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		w.log.Info("worker started")
		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}

				if err := w.handle(workerCtx, d.Body); err != nil {
					requeue := shouldRequeue(err)
					w.log.Error("persist chat failed", "error", err, "requeue", requeue, "redelivered", d.Redelivered)
					if requeue {
						w.backoff(workerCtx)
					}
					_ = d.Nack(false, requeue)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *ChatPersistWorker) handle(ctx context.Context, body []byte) error {
	var chat model.Chat
	if err := json.Unmarshal(body, &chat); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if chat.UserID == 0 || chat.UserMessage == "" || chat.AssistantReply == "" {
		return ErrInvalidPayload
	}
	chat.ID = 0

	if err := w.persister.Persist(ctx, &chat); err != nil {
		return err
	}
	w.log.Debug("chat persisted", "user_id", chat.UserID, "chat_id", chat.ID)
	return nil
}

// shouldRequeue keeps a delivery on the queue unless its body can never be
// persisted.
func shouldRequeue(err error) bool {
	return !errors.Is(err, ErrInvalidPayload)
}

// backoff waits before a requeue so a failing database is not hammered by
// the same delivery.
func (w *ChatPersistWorker) backoff(ctx context.Context) {
	if w.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *ChatPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
