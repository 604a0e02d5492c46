package intent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/parlabank/backend/internal/models"
)

type countingResolver struct {
	result models.Intent
	err    error
	calls  int
}

func (c *countingResolver) Resolve(ctx context.Context, text string) (models.Intent, error) {
	c.calls++
	return c.result, c.err
}

func TestCachedResolver(t *testing.T) {
	ctx := context.Background()
	deposit := models.Intent{Action: models.ActionDeposit, Amount: 50}
	encoded, err := json.Marshal(deposit)
	assert.NoError(t, err)

	t.Run("cache hit skips the inner resolver", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		inner := &countingResolver{result: deposit}
		cached := NewCachedResolver(inner, rdb, time.Hour)

		mock.ExpectGet("intent:deposit fifty").SetVal(string(encoded))

		got, err := cached.Resolve(ctx, "Deposit Fifty ")
		assert.NoError(t, err)
		assert.Equal(t, deposit, got)
		assert.Equal(t, 0, inner.calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache miss resolves and stores", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		inner := &countingResolver{result: deposit}
		cached := NewCachedResolver(inner, rdb, time.Hour)

		mock.ExpectGet("intent:deposit fifty").RedisNil()
		mock.ExpectSet("intent:deposit fifty", encoded, time.Hour).SetVal("OK")

		got, err := cached.Resolve(ctx, "deposit fifty")
		assert.NoError(t, err)
		assert.Equal(t, deposit, got)
		assert.Equal(t, 1, inner.calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache failure falls through to the inner resolver", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		inner := &countingResolver{result: deposit}
		cached := NewCachedResolver(inner, rdb, time.Hour)

		mock.ExpectGet("intent:deposit fifty").SetErr(errors.New("connection refused"))
		mock.ExpectSet("intent:deposit fifty", encoded, time.Hour).SetErr(errors.New("connection refused"))

		got, err := cached.Resolve(ctx, "deposit fifty")
		assert.NoError(t, err)
		assert.Equal(t, deposit, got)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("resolver errors are not cached", func(t *testing.T) {
		rdb, mock := redismock.NewClientMock()
		inner := &countingResolver{err: errors.New("endpoint down")}
		cached := NewCachedResolver(inner, rdb, time.Hour)

		mock.ExpectGet("intent:hello").RedisNil()

		_, err := cached.Resolve(ctx, "hello")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
