package audit

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/pkg/channels/gochannel"
	"github.com/crewdeck/crewdeck/pkg/eventbus"
	"github.com/crewdeck/crewdeck/pkg/events"
	"github.com/crewdeck/crewdeck/pkg/models"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func testBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestLogger_RecordsReviewDecided(t *testing.T) {
	ctx := context.Background()
	bus := testBus(t)

	out := &syncBuffer{}
	logger := NewLogger(bus, slog.New(slog.NewTextHandler(out, nil)))
	require.NoError(t, logger.Start(ctx))

	event := events.ReviewDecided{
		BaseEvent: events.BaseEvent{
			ID:        bus.GenerateID(),
			Type:      events.ReviewDecidedEvent,
			Timestamp: time.Now().UTC(),
		},
		ReviewID:        "rev-1",
		ExecutionID:     "exec-1",
		Status:          models.ReviewStatusApproved,
		ReviewerID:      "user-1",
		WorkflowResumed: true,
	}

	require.NoError(t, bus.Publish(ctx, "rev-1", event))

	assert.Eventually(t, func() bool {
		logged := out.String()

		return bytes.Contains([]byte(logged), []byte("Review decided")) &&
			bytes.Contains([]byte(logged), []byte("review_id=rev-1"))
	}, time.Second, 10*time.Millisecond)
}

func TestLogger_RecordsWorkflowActivated(t *testing.T) {
	ctx := context.Background()
	bus := testBus(t)

	out := &syncBuffer{}
	logger := NewLogger(bus, slog.New(slog.NewTextHandler(out, nil)))
	require.NoError(t, logger.Start(ctx))

	event := events.WorkflowActivated{
		BaseEvent: events.BaseEvent{
			ID:        bus.GenerateID(),
			Type:      events.WorkflowActivatedEvent,
			Timestamp: time.Now().UTC(),
		},
		WorkflowID:     "wf-1",
		OrganizationID: "org-1",
		EngineID:       "engine-wf-1",
		NodeCount:      4,
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", event))

	assert.Eventually(t, func() bool {
		logged := out.String()

		return bytes.Contains([]byte(logged), []byte("Workflow activated")) &&
			bytes.Contains([]byte(logged), []byte("engine_id=engine-wf-1"))
	}, time.Second, 10*time.Millisecond)
}
