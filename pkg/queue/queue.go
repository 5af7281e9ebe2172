package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotRunning   = errors.New("queue: not running")
	ErrUnknownType  = errors.New("queue: no job registered for type")
	ErrEmptyPayload = errors.New("queue: empty payload")
)

// Publisher fans messages out on a named topic without a job behind them.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// Enqueuer submits work for a registered job type and returns the message ID.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers     int           // number of workers
	RetryLimit  int           // number of maximum retries
	RetryDelay  time.Duration // time delay between retries
	PollTimeout time.Duration // BRPOP block time
	TopicCap    int64         // entries kept per published topic
}

// Message represents a message in the queue
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}
