package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"merton-mm-go/infrastructure/logger"
	"merton-mm-go/strategy"
)

// KafkaConfig 写入参数
type KafkaConfig struct {
	Brokers      []string
	QuoteTopic   string
	MonitorTopic string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink 以 JSON 写入 Kafka，key 为交易对。
// writer 为异步模式，PublishQuote 不等待 broker 确认，失败在 Completion 回调中记录。
type KafkaSink struct {
	writer       messageWriter
	quoteTopic   string
	monitorTopic string
	timeout      time.Duration
}

func NewKafkaSink(cfg KafkaConfig, log *logger.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if cfg.QuoteTopic == "" || cfg.MonitorTopic == "" {
		return nil, fmt.Errorf("quote and monitor topics are required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
		MaxAttempts:  3,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.LogError(err, map[string]interface{}{"component": "kafka_sink", "messages": len(msgs)})
			}
		},
	}
	return newKafkaSink(w, cfg), nil
}

func newKafkaSink(w messageWriter, cfg KafkaConfig) *KafkaSink {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &KafkaSink{writer: w, quoteTopic: cfg.QuoteTopic, monitorTopic: cfg.MonitorTopic, timeout: timeout}
}

func (s *KafkaSink) PublishQuote(q strategy.Quote) error {
	return s.publish(s.quoteTopic, q.Symbol, q)
}

func (s *KafkaSink) PublishMonitor(m strategy.MonitorRecord) error {
	return s.publish(s.monitorTopic, m.Symbol, m)
}

func (s *KafkaSink) publish(topic, key string, value interface{}) error {
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: v,
		Time:  time.Now(),
	})
}

// Close 刷出缓冲中的消息。
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
