package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductLocks_SerializesSameProduct(t *testing.T) {
	locks := newProductLocks()

	unlock, err := locks.acquire(context.Background(), "p1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.acquire(ctx, "p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locks.acquire(context.Background(), "p2")
	require.NoError(t, err)
	other()

	unlock()
	again, err := locks.acquire(context.Background(), "p1")
	require.NoError(t, err)
	again()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}
