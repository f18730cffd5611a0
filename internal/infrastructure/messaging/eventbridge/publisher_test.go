package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"coursecraft-backend/internal/domain"
)

type fakeEventBridge struct {
	calls  []*eventbridge.PutEventsInput
	err    error
	failed int32
}

func (f *fakeEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{FailedEntryCount: f.failed}
	for i := range in.Entries {
		entry := types.PutEventsResultEntry{EventId: aws.String(fmt.Sprint(i))}
		if int32(i) < f.failed {
			entry.ErrorCode = aws.String("InternalFailure")
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func linkedEvents(n int) []domain.DomainEvent {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	events := make([]domain.DomainEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, domain.NewResourceLinkedEvent(fmt.Sprintf("r-%d", i), "c-1", "", domain.LinkPrimary, at))
	}
	return events
}

func TestPublishBatchesByTen(t *testing.T) {
	client := &fakeEventBridge{}
	p := NewPublisher(client, "bus", zaptest.NewLogger(t))

	require.NoError(t, p.Publish(context.Background(), linkedEvents(23)...))

	require.Len(t, client.calls, 3)
	assert.Len(t, client.calls[0].Entries, 10)
	assert.Len(t, client.calls[1].Entries, 10)
	assert.Len(t, client.calls[2].Entries, 3)
}

func TestPublishEntryShape(t *testing.T) {
	client := &fakeEventBridge{}
	p := NewPublisher(client, "bus", nil)

	require.NoError(t, p.Publish(context.Background(), linkedEvents(1)...))

	entry := client.calls[0].Entries[0]
	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, domain.EventResourceLinked, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "r-0", detail["aggregateId"])
	data := detail["data"].(map[string]interface{})
	assert.Equal(t, "c-1", data["contentId"])
	assert.Equal(t, "primary", data["linkType"])
}

func TestPublishErrors(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		p := NewPublisher(&fakeEventBridge{err: errors.New("throttled")}, "bus", nil)
		assert.Error(t, p.Publish(context.Background(), linkedEvents(1)...))
	})

	t.Run("failed entries", func(t *testing.T) {
		p := NewPublisher(&fakeEventBridge{failed: 1}, "bus", zaptest.NewLogger(t))
		err := p.Publish(context.Background(), linkedEvents(2)...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 events failed")
	})

	t.Run("nothing to publish", func(t *testing.T) {
		client := &fakeEventBridge{}
		p := NewPublisher(client, "bus", nil)
		require.NoError(t, p.Publish(context.Background()))
		assert.Empty(t, client.calls)
	})
}
