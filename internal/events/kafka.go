package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Log is the durable event log backing projection replay. Events are keyed by
// network address so a partition preserves per-address ordering.
type Log struct {
	client  *kgo.Client
	brokers []string
	topic   string
}

// NewLog connects to the brokers and ensures the topic exists.
func NewLog(ctx context.Context, brokers []string, topic string) (*Log, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("create topic %s: %w", topic, res.Err)
		}
	}

	return &Log{client: client, brokers: brokers, topic: topic}, nil
}

func (l *Log) Close() {
	l.client.Close()
}

// Append produces the envelope synchronously; the bus only fans an event out
// once it is durable.
func (l *Log) Append(ctx context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(env.Address.String()),
		Value: value,
	}
	if err := l.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Backlog reads the whole topic from the start up to the end offsets observed
// at call time. Used once at startup to rebuild projection state.
func (l *Log) Backlog(ctx context.Context) ([]Envelope, error) {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(l.brokers...),
		kgo.ConsumeTopics(l.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect backlog consumer: %w", err)
	}
	defer consumer.Close()

	adm := kadm.NewClient(consumer)
	ends, err := adm.ListEndOffsets(ctx, l.topic)
	if err != nil {
		return nil, fmt.Errorf("list end offsets: %w", err)
	}
	var remaining int64
	ends.Each(func(o kadm.ListedOffset) {
		remaining += o.Offset
	})
	if remaining == 0 {
		return nil, nil
	}

	var backlog []Envelope
	for remaining > 0 {
		fetches := consumer.PollFetches(ctx)
		if err := fetches.Err0(); err != nil {
			return nil, fmt.Errorf("poll backlog: %w", err)
		}
		var iterErr error
		fetches.EachRecord(func(record *kgo.Record) {
			remaining--
			var env Envelope
			if err := json.Unmarshal(record.Value, &env); err != nil {
				iterErr = fmt.Errorf("decode envelope at offset %d: %w", record.Offset, err)
				return
			}
			backlog = append(backlog, env)
		})
		if iterErr != nil {
			return nil, iterErr
		}
	}
	return backlog, nil
}
