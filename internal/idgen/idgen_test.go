package idgen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterSource struct {
	next map[string]int
	err  error
}

func (c *counterSource) NextSequence(_ context.Context, kind Kind, period string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	key := string(kind) + "/" + period
	c.next[key]++
	return c.next[key], nil
}

func TestGeneratorFormats(t *testing.T) {
	src := &counterSource{next: map[string]int{}}
	gen := New(src)
	now := time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

	first, err := gen.NextTransactionID(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "03-2026-000001", first)

	second, err := gen.NextTransactionID(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "03-2026-000002", second)

	customer, err := gen.NextCustomerID(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "03-2026-C00001", customer)

	nextMonth, err := gen.NextTransactionID(context.Background(), now.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "04-2026-000001", nextMonth)
}

func TestGeneratorPropagatesSourceError(t *testing.T) {
	gen := New(&counterSource{err: errors.New("locked")})
	_, err := gen.NextTransactionID(context.Background(), time.Now())
	require.Error(t, err)
}

func TestParseSequence(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		id     string
		want   int
		wantOK bool
	}{
		{name: "transaction", kind: KindTransaction, id: "10-2026-000042", want: 42, wantOK: true},
		{name: "customer", kind: KindCustomer, id: "10-2026-C00007", want: 7, wantOK: true},
		{name: "other period", kind: KindTransaction, id: "09-2026-000042"},
		{name: "customer id is not a transaction", kind: KindTransaction, id: "10-2026-C00007"},
		{name: "garbage suffix", kind: KindTransaction, id: "10-2026-00x042"},
		{name: "empty suffix", kind: KindTransaction, id: "10-2026-"},
		{name: "zero", kind: KindTransaction, id: "10-2026-000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseSequence(tt.kind, "10-2026", tt.id)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaxSequence(t *testing.T) {
	ids := []string{"10-2026-000003", "10-2026-000011", "09-2026-000099", "10-2026-C00050"}
	assert.Equal(t, 11, MaxSequence(KindTransaction, "10-2026", ids))
	assert.Equal(t, 50, MaxSequence(KindCustomer, "10-2026", ids))
	assert.Equal(t, 0, MaxSequence(KindTransaction, "11-2026", ids))
}
