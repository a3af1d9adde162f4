package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"medpos/backend/internal/domain"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func sampleAlert() domain.LowStockAlert {
	return domain.LowStockAlert{
		Threshold: 5,
		Source:    "checkout",
		Items:     []domain.InventoryItem{{ID: "MED001", Name: "Paracetamol", Quantity: 2}},
	}
}

func TestRedisNotifierPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := NewRedisNotifier(pub, "medpos:alerts:low-stock")

	require.NoError(t, n.NotifyLowStock(context.Background(), sampleAlert()))
	assert.Equal(t, "medpos:alerts:low-stock", pub.channel)

	var decoded domain.LowStockAlert
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "MED001", decoded.Items[0].ID)

	pub.err = errors.New("connection refused")
	require.Error(t, n.NotifyLowStock(context.Background(), sampleAlert()))
}

func TestLogNotifierWritesWarning(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.NotifyLowStock(context.Background(), sampleAlert()))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"MED001"`)
}

func TestFanoutJoinsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockNotifier(ctrl)
	second := NewMockNotifier(ctrl)

	boom := errors.New("boom")
	first.EXPECT().NotifyLowStock(gomock.Any(), gomock.Any()).Return(boom)
	second.EXPECT().NotifyLowStock(gomock.Any(), gomock.Any()).Return(nil)

	err := Fanout{first, second}.NotifyLowStock(context.Background(), sampleAlert())
	require.ErrorIs(t, err, boom)
}
