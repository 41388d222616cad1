package resettoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAttemptStoreCounts(t *testing.T) {
	s := NewMemoryAttemptStore()
	ctx := context.Background()

	n, err := s.Failures(ctx, "a@b.c+123")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.RecordFailure(ctx, "a@b.c+123", time.Hour))
		n, err = s.Failures(ctx, "a@b.c+123")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	// Independent keys do not share counters.
	n, err = s.Failures(ctx, "a@b.c+456")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMemoryAttemptStoreExpiry(t *testing.T) {
	s := NewMemoryAttemptStore()
	ctx := context.Background()

	base := time.Now()
	s.now = func() time.Time { return base }

	require.NoError(t, s.RecordFailure(ctx, "a@b.c+123", time.Minute))
	n, err := s.Failures(ctx, "a@b.c+123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	n, err = s.Failures(ctx, "a@b.c+123")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "expired counters read as zero")

	// A failure after expiry starts a fresh counter.
	require.NoError(t, s.RecordFailure(ctx, "a@b.c+123", time.Minute))
	n, err = s.Failures(ctx, "a@b.c+123")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
