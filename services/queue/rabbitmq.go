package queuesvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nujoom/school/core"
	"github.com/nujoom/school/core/points"
)

const (
	reconnectDelay       = 5 * time.Second
	maxReconnectAttempts = 10
	messageTimeout       = 30 * time.Second
)

type (
	// Syncer is the push action run for every points event.
	Syncer interface {
		Sync(ctx context.Context, ownerID string, forceRefresh bool, locale string) points.SyncResult
	}

	// Event asks for the balance of UserID to be reconciled.
	Event struct {
		UserID string `json:"user_id"`
		Force  bool   `json:"force"`
	}

	Consumer struct {
		url      string
		queue    string
		prefetch int
		workers  int
		syncer   Syncer
		logger   core.Logger

		conn    *amqp.Connection
		channel *amqp.Channel
		mu      sync.RWMutex

		ctx    context.Context
		cancel context.CancelFunc
		closed bool // guarded by mu
		wg     sync.WaitGroup
	}
)

func NewConsumer(conf *core.Config, syncer Syncer, logger core.Logger) (*Consumer, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newConsumer(conf, syncer, logger)
	c.ctx, c.cancel = ctx, cancel

	if err := c.connect(); err != nil {
		cancel()
		return nil, errors.Wrap(err, "connecting to RabbitMQ")
	}
	return c, nil
}

func newConsumer(conf *core.Config, syncer Syncer, logger core.Logger) *Consumer {
	workers := conf.RabbitMQ.Workers
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		url:      conf.RabbitMQ.URL,
		queue:    conf.RabbitMQ.Queue,
		prefetch: conf.RabbitMQ.Prefetch,
		workers:  workers,
		syncer:   syncer,
		logger:   logger,
	}
}

func (c *Consumer) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return errors.Wrap(err, "dialing RabbitMQ")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "opening channel")
	}

	if _, err = ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return errors.Wrap(err, "declaring queue")
	}

	if err = ch.Qos(c.prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return errors.Wrap(err, "setting QoS")
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ", map[string]interface{}{"queue": c.queue})
	go c.monitorConnection()
	return nil
}

func (c *Consumer) monitorConnection() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return
	}

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case err := <-notifyClose:
		if err != nil {
			c.logger.Error("RabbitMQ connection closed unexpectedly", errors.New(err.Error()))
			c.reconnect()
		}
	case <-c.ctx.Done():
	}
}

func (c *Consumer) reconnect() {
	c.mu.Lock()
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if err := c.connect(); err == nil {
			go func() {
				if err := c.Start(c.ctx); err != nil && c.ctx.Err() == nil {
					c.logger.Error("restarting consumer after reconnect", err)
				}
			}()
			return
		}

		delay := reconnectDelay * time.Duration(attempt)
		c.logger.Warn("reconnection failed, retrying", map[string]interface{}{"attempt": attempt, "delay": delay.String()})
		select {
		case <-time.After(delay):
		case <-c.ctx.Done():
			return
		}
	}
	c.logger.Error("max reconnection attempts reached, giving up")
}

// Start consumes the queue until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	channel := c.channel
	c.mu.RUnlock()
	if channel == nil {
		return errors.New("channel is not initialized")
	}

	msgs, err := channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrap(err, "consuming queue")
	}

	if !c.startWorkers(ctx, msgs) {
		return nil
	}
	<-ctx.Done()
	c.wg.Wait()
	return nil
}

// startWorkers spawns the workers unless the consumer is closed. Close waits on wg, so no Add may follow it.
func (c *Consumer) startWorkers(ctx context.Context, msgs <-chan amqp.Delivery) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || ctx.Err() != nil {
		return false
	}

	c.logger.Info("starting consumer workers", map[string]interface{}{"workers": c.workers})
	c.wg.Add(c.workers)
	for i := 0; i < c.workers; i++ {
		go c.worker(ctx, msgs, i)
	}
	return true
}

func (c *Consumer) worker(ctx context.Context, msgs <-chan amqp.Delivery, workerID int) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("message channel closed", map[string]interface{}{"worker_id": workerID})
				return
			}
			c.processMessage(ctx, msg)
		}
	}
}

// processMessage acks reconciled events, drops malformed ones, and requeues ledger failures once.
func (c *Consumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, messageTimeout)
	defer cancel()

	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error("decoding points event", err, map[string]interface{}{"body": string(msg.Body)})
		_ = msg.Nack(false, false)
		return
	}

	res := c.syncer.Sync(ctx, event.UserID, event.Force, "")
	fields := map[string]interface{}{"owner_id": event.UserID, "force": event.Force, "redelivered": msg.Redelivered}
	switch res.Failure {
	case points.FailureNone:
		_ = msg.Ack(false)
	case points.FailureLedger:
		c.logger.Warn("points event failed", errors.New(res.Error), fields)
		_ = msg.Nack(false, !msg.Redelivered)
	default:
		c.logger.Error("points event rejected", errors.New(res.Error), fields)
		_ = msg.Nack(false, false)
	}
}

func (c *Consumer) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.logger.Info("consumer closed")
}
