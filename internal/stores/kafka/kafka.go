package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

type Conf struct {
	client *kgo.Client
}

// NewConf builds a producer client against the given brokers.
func NewConf(brokers []string) (*Conf, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging kafka: %w", err)
	}
	return &Conf{client: client}, nil
}

// NewConsumerConf builds a client that consumes the topic as part of the
// given consumer group. Offsets are committed only after the handler
// succeeds, so failed messages are redelivered.
func NewConsumerConf(brokers []string, topic, group string) (*Conf, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumerGroup(group),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka consumer client: %w", err)
	}
	return &Conf{client: client}, nil
}

// ProduceMessage writes one record synchronously.
func (c *Conf) ProduceMessage(topic string, key, value []byte) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("producing message to %s: %w", topic, err)
	}
	return nil
}

// Handler processes a single consumed record.
type Handler func(ctx context.Context, key, value []byte) error

// ConsumeMessages polls until ctx is cancelled, invoking handler per record
// in offset order within each partition. Only the successfully handled
// prefix of a partition is committed; on a failure the partition is rewound
// to the failed record so it and everything after it are redelivered.
func (c *Conf) ConsumeMessages(ctx context.Context, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			slog.Error("kafka fetch error", slog.String("Topic", topic),
				slog.Int("Partition", int(partition)), slog.String("Error", err.Error()))
		})

		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			done, failed := runHandler(ctx, p.Records, handler)
			if len(done) > 0 {
				if err := c.client.CommitRecords(ctx, done...); err != nil {
					slog.Error("committing offsets failed", slog.String("Topic", p.Topic),
						slog.Int("Partition", int(p.Partition)), slog.String("Error", err.Error()))
				}
			}
			if failed != nil {
				// The client's fetch position is already past this record;
				// seek back so the next poll returns it again.
				c.client.SetOffsets(map[string]map[int32]kgo.EpochOffset{
					failed.Topic: {failed.Partition: {
						Epoch:  failed.LeaderEpoch,
						Offset: failed.Offset,
					}},
				})
			}
		})
	}
}

// runHandler invokes handler per record, stopping at the first failure so
// nothing past a failed offset gets committed. Returns the successful
// prefix and the record that failed, if any.
func runHandler(ctx context.Context, records []*kgo.Record, handler Handler) ([]*kgo.Record, *kgo.Record) {
	for i, record := range records {
		processCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := handler(processCtx, record.Key, record.Value)
		cancel()
		if err != nil {
			slog.Error("processing record failed", slog.String("Topic", record.Topic),
				slog.Int64("Offset", record.Offset), slog.String("Error", err.Error()))
			return records[:i], record
		}
	}
	return records, nil
}

func (c *Conf) Close() {
	c.client.Close()
}
