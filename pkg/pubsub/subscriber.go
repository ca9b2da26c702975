package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Handler func(context.Context, amqp091.Delivery) error

type Subscriber interface {
	RegisterHandler(routingKey string, handler Handler)
	Start(queueName string) error
	Close() error
}

// ErrPoison marks a delivery that can never be processed (bad content).
// Poison deliveries are acked and dropped instead of requeued.
var ErrPoison = errors.New("poison message")

// JSONHandler wraps a typed handler and turns decode failures into ErrPoison.
func JSONHandler[T any](h func(context.Context, T) error) Handler {
	return func(ctx context.Context, d amqp091.Delivery) error {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrPoison, err)
		}
		return h(ctx, v)
	}
}

type rmqSubscriber struct {
	conn      *amqp091.Connection
	ch        *amqp091.Channel
	exchange  string
	log       *slog.Logger
	mu        sync.RWMutex
	handlers  map[string]Handler
	msgChan   chan amqp091.Delivery
	done      chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
	closeOnce sync.Once
	workerCnt int
	timeout   time.Duration
}

// NewSubscriber opens a channel on conn and declares exchange. workerCnt
// of 1 keeps deliveries in queue order.
func NewSubscriber(conn *amqp091.Connection, exchange string, logger *slog.Logger, bufferCap, workerCnt int) (Subscriber, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	if workerCnt <= 0 {
		workerCnt = 1
	}
	return &rmqSubscriber{
		conn:      conn,
		ch:        ch,
		exchange:  exchange,
		log:       logger.With("op", "pubsub.subscribe"),
		handlers:  make(map[string]Handler),
		msgChan:   make(chan amqp091.Delivery, bufferCap),
		done:      make(chan struct{}),
		workerCnt: workerCnt,
		timeout:   30 * time.Second,
	}, nil
}

func (s *rmqSubscriber) RegisterHandler(routingKey string, handler Handler) {
	s.mu.Lock()
	s.handlers[routingKey] = handler
	s.mu.Unlock()
}

func (s *rmqSubscriber) Start(queueName string) error {
	var startErr error
	s.once.Do(func() {
		if err := s.setupQueue(queueName); err != nil {
			startErr = err
			return
		}

		s.runWorkerPool()
		s.log.Info("subscriber started", slog.String("queue", queueName))
	})
	return startErr
}

func (s *rmqSubscriber) setupQueue(queueName string) error {
	if err := s.ch.Qos(10, 0, false); err != nil {
		return err
	}
	q, err := s.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}
	s.mu.RLock()
	for key := range s.handlers {
		if err := s.ch.QueueBind(q.Name, key, s.exchange, false, nil); err != nil {
			s.mu.RUnlock()
			return err
		}
	}
	s.mu.RUnlock()
	msgs, err := s.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		defer close(s.msgChan)
		for {
			select {
			case <-s.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case s.msgChan <- msg:
				case <-s.done:
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()
	return nil
}

func (s *rmqSubscriber) runWorkerPool() {
	for i := 0; i < s.workerCnt; i++ {
		s.wg.Add(1)
		go s.workerLoop()
	}
}

func (s *rmqSubscriber) workerLoop() {
	defer s.wg.Done()
	for msg := range s.msgChan {
		s.mu.RLock()
		handler, ok := s.handlers[msg.RoutingKey]
		s.mu.RUnlock()
		if !ok {
			s.log.Warn("no handler", slog.String("key", msg.RoutingKey))
			_ = msg.Nack(false, false)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := handler(ctx, msg)
		cancel()
		switch {
		case errors.Is(err, ErrPoison):
			s.log.Warn("poison message dropped", slog.String("key", msg.RoutingKey), slog.Any("err", err))
			_ = msg.Ack(false)
		case err != nil:
			s.log.Error("handler error", slog.String("key", msg.RoutingKey), slog.Any("err", err))
			_ = msg.Nack(false, true)
		default:
			_ = msg.Ack(false)
		}
	}
}

func (s *rmqSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		_ = s.ch.Close()
		err = s.conn.Close()
	})
	return err
}
