package numerator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "procura/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences UPSERT: every call advances the
// stored value by the requested increment and returns the new value.
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	m.calls++
	return &mockRow{val: m.currentValue}
}

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("RCV")
	now := time.Now()

	num, err := svc.GetNextNumber(ctx, cfg, nil, now)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("RCV-%d-00001", now.Year()), num)

	num, err = svc.GetNextNumber(ctx, cfg, nil, now)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("RCV-%d-00002", now.Year()), num)

	// Every strict number is one round-trip.
	assert.Equal(t, 2, q.calls)
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.DefaultConfig("PO")
	now := time.Now()

	opts := &core.Options{
		Strategy:  core.StrategyCached,
		RangeSize: 10,
	}

	num, err := svc.GetNextNumber(ctx, cfg, opts, now)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PO-%d-00001", now.Year()), num)
	assert.EqualValues(t, 10, q.currentValue)

	// Served from memory, no extra round-trip.
	num, err = svc.GetNextNumber(ctx, cfg, opts, now)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PO-%d-00002", now.Year()), num)
	assert.Equal(t, 1, q.calls)

	// Exhaust the range; the next number reserves a new block.
	for i := 0; i < 8; i++ {
		_, err = svc.GetNextNumber(ctx, cfg, opts, now)
		require.NoError(t, err)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, now)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PO-%d-00011", now.Year()), num)
	assert.EqualValues(t, 20, q.currentValue)
	assert.Equal(t, 2, q.calls)
}

func TestGetNextNumber_MonthlyReset(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()

	cfg := core.Config{Prefix: "RET", IncludeYear: true, PadWidth: 5, ResetPeriod: "month"}
	jan := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "RET_2026_01", buildKey(cfg, jan))
	assert.Equal(t, "RET_2026_02", buildKey(cfg, feb))

	num, err := svc.GetNextNumber(ctx, cfg, nil, jan)
	require.NoError(t, err)
	assert.Equal(t, "RET-2026-00001", num)
}

func TestParseNumber(t *testing.T) {
	assert.EqualValues(t, 42, ParseNumber("PO-2026-00042"))
	assert.EqualValues(t, 7, ParseNumber("PO-00007"))
	assert.EqualValues(t, -1, ParseNumber("garbage"))
}
