package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeCloseReverseOrder(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	rt := &Runtime{closers: []func(context.Context) error{
		func(context.Context) error { order = append(order, "db"); return nil },
		func(context.Context) error { order = append(order, "redis"); return boom },
		func(context.Context) error { order = append(order, "events"); return nil },
	}}

	err := rt.Close(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"events", "redis", "db"}, order)

	// A second close is a no-op.
	assert.NoError(t, rt.Close(context.Background()))
	assert.Len(t, order, 3)
}
