package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/finchinslc/openclaw-board/domain"
)

type enqueuer interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueueSink publishes task events to an Azure Storage queue so other
// services can consume them.
type QueueSink struct {
	queue   enqueuer
	logger  log.FieldLogger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func queueClientOptions() *azqueue.ClientOptions {
	return &azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
}

// NewQueueSink connects to the named queue.
func NewQueueSink(connStr, queue string, logger log.FieldLogger, timeout time.Duration) (*QueueSink, error) {
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, queueClientOptions())
	if err != nil {
		return nil, err
	}
	return newQueueSink(client, logger, timeout), nil
}

func newQueueSink(q enqueuer, logger log.FieldLogger, timeout time.Duration) *QueueSink {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &QueueSink{queue: q, logger: logger, timeout: timeout, now: time.Now}
}

// EnsureQueue creates the queue if it does not exist yet.
func EnsureQueue(ctx context.Context, connStr, queue string) error {
	client, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, nil)
	if err != nil {
		return err
	}
	if _, err := client.Create(ctx, nil); err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return err
		}
	}
	return nil
}

// Send enqueues the event payload in the background.
func (q *QueueSink) Send(event Event, task domain.TaskSummary, changes []domain.Change) {
	if !event.Valid() {
		return
	}
	data, err := sonic.MarshalString(NewPayload(event, task, changes, q.now()))
	if err != nil {
		q.logger.WithError(err).WithField("event", event).Error("encode queue payload")
		return
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		defer cancel()
		if _, err := q.queue.EnqueueMessage(ctx, data, nil); err != nil {
			q.logger.WithError(err).WithFields(log.Fields{
				"event": event,
				"task":  task.ID,
			}).Error("enqueue task event failed")
		}
	}()
}

func (q *QueueSink) Wait() {
	q.wg.Wait()
}
