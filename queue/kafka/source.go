// Package kafka reads recording jobs from a Kafka topic through a consumer
// group. Kafka has no per-message lease, so a failed message is released
// by republishing it with a bumped delivery count and committing the
// original; after MaxDeliveries it goes to the dead-letter topic.
//
// Several poll loops may share one Source. Offsets are committed only up
// to the highest message whose partition predecessors are all settled, so
// a crash redelivers every job that was still in flight.
package kafka

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/remworker/logger"
	"github.com/kbukum/remworker/queue"
)

// HeaderDeliveries carries the delivery count across republishes.
const HeaderDeliveries = "x-delivery-count"

// Reader is the consumer-group surface of *kafkago.Reader.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer is the producer surface of *kafkago.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

var (
	_ Reader = (*kafkago.Reader)(nil)
	_ Writer = (*kafkago.Writer)(nil)
)

// Source is a queue.Source over one topic.
type Source struct {
	cfg    Config
	reader Reader
	writer Writer
	log    *logger.Logger

	mu      sync.Mutex
	pending map[string]*inflight
	// inflight messages per partition, ordered by offset.
	partitions map[partition][]*inflight
}

type partition struct {
	topic string
	id    int
}

// inflight is a fetched message not yet committed.
type inflight struct {
	msg     kafkago.Message
	settled bool
}

var (
	_ queue.Source   = (*Source)(nil)
	_ queue.Releaser = (*Source)(nil)
)

// New dials nothing; kafka-go connects lazily on first fetch or write.
func New(cfg Config, log *logger.Logger) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka source config: %w", err)
	}
	dialer, err := CreateDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka source dialer: %w", err)
	}
	transport, err := CreateTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka source transport: %w", err)
	}
	klog := log.WithComponent("kafka")

	rc := readerConfig(cfg, dialer)
	rc.ErrorLogger = kafkago.LoggerFunc(func(msg string, args ...interface{}) {
		klog.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields("topics", cfg.topics(), "group_id", cfg.GroupID))
	})
	reader := kafkago.NewReader(rc)
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Compression:  ResolveCompression(cfg.Compression),
		WriteTimeout: cfg.WriteTimeout,
	}

	klog.Info("Kafka source initialized", logger.Fields("topics", cfg.topics(), "group_id", cfg.GroupID, "brokers", cfg.Brokers))
	return NewWithClients(cfg, reader, writer, klog), nil
}

// readerConfig subscribes the group to the job topic and, when it is a
// separate topic, the retry topic. kafka-go rejects Topic together with
// GroupTopics, so only one of them is set.
func readerConfig(cfg Config, dialer *kafkago.Dialer) kafkago.ReaderConfig {
	rc := kafkago.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		Dialer:            dialer,
		StartOffset:       kafkago.FirstOffset,
		MinBytes:          1,
		MaxBytes:          10e6,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		RebalanceTimeout:  cfg.RebalanceTimeout,
	}
	if topics := cfg.topics(); len(topics) > 1 {
		rc.GroupTopics = topics
	} else {
		rc.Topic = cfg.Topic
	}
	return rc
}

// NewWithClients builds a source over existing clients.
func NewWithClients(cfg Config, reader Reader, writer Writer, log *logger.Logger) *Source {
	cfg.ApplyDefaults()
	return &Source{
		cfg:     cfg,
		reader:  reader,
		writer:  writer,
		log:     log,
		pending:    make(map[string]*inflight),
		partitions: make(map[partition][]*inflight),
	}
}

func (s *Source) Name() string { return queue.BackendKafka }

const bufferedWait = 100 * time.Millisecond

// Receive fetches up to max messages. Only the first fetch waits the full
// WaitTime; the rest take what is already buffered.
func (s *Source) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	if max <= 0 {
		max = 1
	}
	var out []queue.Message
	for len(out) < max {
		wait := s.cfg.WaitTime
		if len(out) > 0 {
			wait = bufferedWait
		}
		fetchCtx, cancel := context.WithTimeout(ctx, wait)
		m, err := s.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return out, nil
			}
			return out, fmt.Errorf("kafka fetch: %w", err)
		}
		out = append(out, s.track(m))
	}
	return out, nil
}

func (s *Source) track(m kafkago.Message) queue.Message {
	receipt := fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
	e := &inflight{msg: m}

	s.mu.Lock()
	s.pending[receipt] = e
	p := partition{topic: m.Topic, id: m.Partition}
	q := s.partitions[p]
	i, found := slices.BinarySearchFunc(q, m.Offset, func(x *inflight, off int64) int {
		return cmp.Compare(x.msg.Offset, off)
	})
	if found {
		// Refetched after a rebalance.
		q[i] = e
	} else {
		s.partitions[p] = slices.Insert(q, i, e)
	}
	s.mu.Unlock()

	id := string(m.Key)
	if id == "" {
		id = receipt
	}
	return queue.Message{
		ID:           id,
		Body:         m.Value,
		Receipt:      receipt,
		ReceiveCount: deliveries(m),
	}
}

func (s *Source) take(receipt string) (*inflight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[receipt]
	delete(s.pending, receipt)
	return e, ok
}

// settle marks e done and pops the settled prefix of its partition. It
// returns the last popped message, which is safe to commit, or false while
// an earlier offset is still in flight.
func (s *Source) settle(e *inflight) (kafkago.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.settled = true
	p := partition{topic: e.msg.Topic, id: e.msg.Partition}
	q := s.partitions[p]
	n := 0
	for n < len(q) && q[n].settled {
		n++
	}
	if n == 0 {
		return kafkago.Message{}, false
	}
	last := q[n-1].msg
	if n == len(q) {
		delete(s.partitions, p)
	} else {
		s.partitions[p] = slices.Delete(q, 0, n)
	}
	return last, true
}

func (s *Source) commit(ctx context.Context, receipt string, e *inflight) error {
	m, ok := s.settle(e)
	if !ok {
		s.log.Debug("commit deferred", logger.Fields("receipt", receipt))
		return nil
	}
	if err := s.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("kafka commit %s: %w", receipt, err)
	}
	return nil
}

// Ack settles the message and commits the partition's settled prefix.
func (s *Source) Ack(ctx context.Context, msg queue.Message) error {
	e, ok := s.take(msg.Receipt)
	if !ok {
		return queue.ErrStaleReceipt
	}
	return s.commit(ctx, msg.Receipt, e)
}

// Release republishes the message for another attempt, or dead-letters it,
// then settles the original like Ack.
func (s *Source) Release(ctx context.Context, msg queue.Message) error {
	e, ok := s.take(msg.Receipt)
	if !ok {
		return queue.ErrStaleReceipt
	}
	m := e.msg

	n := deliveries(m)
	topic := s.cfg.RetryTopic
	if n >= s.cfg.MaxDeliveries {
		topic = s.cfg.DeadLetterTopic
	}

	if topic == "" {
		s.log.Error("message dropped after max deliveries", logger.Fields(logger.FieldMessageID, msg.ID, "deliveries", n))
	} else {
		out := kafkago.Message{
			Topic:   topic,
			Key:     m.Key,
			Value:   m.Value,
			Headers: withDeliveries(m.Headers, n+1),
		}
		if err := s.writer.WriteMessages(ctx, out); err != nil {
			s.put(msg.Receipt, e)
			return fmt.Errorf("kafka republish to %s: %w", topic, err)
		}
		if topic == s.cfg.DeadLetterTopic {
			s.log.Warn("message dead-lettered", logger.Fields(logger.FieldMessageID, msg.ID, "deliveries", n, "topic", topic))
		}
	}

	return s.commit(ctx, msg.Receipt, e)
}

func (s *Source) put(receipt string, e *inflight) {
	s.mu.Lock()
	s.pending[receipt] = e
	s.mu.Unlock()
}

func (s *Source) Close() error {
	return errors.Join(s.reader.Close(), s.writer.Close())
}

func deliveries(m kafkago.Message) int {
	for _, h := range m.Headers {
		if h.Key == HeaderDeliveries {
			if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}

func withDeliveries(headers []kafkago.Header, n int) []kafkago.Header {
	out := make([]kafkago.Header, 0, len(headers)+1)
	for _, h := range headers {
		if h.Key != HeaderDeliveries {
			out = append(out, h)
		}
	}
	return append(out, kafkago.Header{Key: HeaderDeliveries, Value: []byte(strconv.Itoa(n))})
}
