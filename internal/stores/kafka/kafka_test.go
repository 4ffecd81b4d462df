package kafka

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"
)

func partitionRecords(offsets ...int64) []*kgo.Record {
	records := make([]*kgo.Record, 0, len(offsets))
	for _, off := range offsets {
		records = append(records, &kgo.Record{
			Topic:     TopicOrderStatusChanged,
			Partition: 0,
			Offset:    off,
			Value:     []byte(fmt.Sprintf("event-%d", off)),
		})
	}
	return records
}

func TestRunHandlerStopsAtFirstFailure(t *testing.T) {
	records := partitionRecords(10, 11, 12, 13)

	var handled []string
	handler := func(_ context.Context, _, value []byte) error {
		handled = append(handled, string(value))
		if string(value) == "event-11" {
			return fmt.Errorf("downstream unavailable")
		}
		return nil
	}

	done, failed := runHandler(context.Background(), records, handler)

	// Only the prefix before the failure may be committed; the record
	// after the failed one must not even be handled, or a later commit
	// would advance past the failure and lose it.
	assert.Equal(t, []string{"event-10", "event-11"}, handled)
	assert.Len(t, done, 1)
	assert.Equal(t, int64(10), done[0].Offset)
	assert.NotNil(t, failed)
	assert.Equal(t, int64(11), failed.Offset)
}

func TestRunHandlerFirstRecordFails(t *testing.T) {
	records := partitionRecords(5, 6)

	handler := func(_ context.Context, _, _ []byte) error {
		return fmt.Errorf("boom")
	}

	done, failed := runHandler(context.Background(), records, handler)
	assert.Empty(t, done)
	assert.Equal(t, int64(5), failed.Offset)
}

func TestRunHandlerAllSucceed(t *testing.T) {
	records := partitionRecords(1, 2, 3)

	handler := func(_ context.Context, _, _ []byte) error {
		return nil
	}

	done, failed := runHandler(context.Background(), records, handler)
	assert.Len(t, done, 3)
	assert.Nil(t, failed)
}
