package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_ReverseOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sm := NewShutdownManager(logger, time.Second)

	var order []string
	for _, name := range []string{"moddb", "mods", "status server"} {
		name := name
		sm.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"status server", "mods", "moddb"}, order)
}

func TestShutdownManager_ContinuesAfterError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sm := NewShutdownManager(logger, 0)

	ran := false
	sm.Register("first", func(ctx context.Context) error {
		ran = true
		return nil
	})
	sm.Register("second", func(ctx context.Context) error { return errors.New("stuck") })

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second: stuck")
	assert.True(t, ran)
	assert.NotEmpty(t, hook.Entries)

	// repeated calls return the same result without rerunning
	ran = false
	assert.Equal(t, err, sm.Shutdown(context.Background()))
	assert.False(t, ran)
}

func TestShutdownManager_WaitForSignalContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sm := NewShutdownManager(logger, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		sm.WaitForSignal(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForSignal did not return on cancelled context")
	}
}
