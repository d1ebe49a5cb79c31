package directory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("Lookup returns registered value", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(ConnectionFactoryName, "amqp://localhost:5672/")

		value, err := registry.Lookup(ConnectionFactoryName)
		require.NoError(t, err)
		assert.Equal(t, "amqp://localhost:5672/", value)
	})

	t.Run("Lookup of unknown name fails", func(t *testing.T) {
		registry := NewRegistry()

		_, err := registry.Lookup(QueueName)
		assert.ErrorIs(t, err, ErrNameNotFound)
		assert.Contains(t, err.Error(), QueueName)
	})

	t.Run("Register replaces previous binding", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(QueueName, "first")
		registry.Register(QueueName, "second")

		value, err := registry.Lookup(QueueName)
		require.NoError(t, err)
		assert.Equal(t, "second", value)
	})

	t.Run("Names lists registered names", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(ConnectionFactoryName, "amqp://localhost:5672/")
		registry.Register(QueueName, "MyQueue")

		assert.ElementsMatch(t, []string{ConnectionFactoryName, QueueName}, registry.Names())
	})

	t.Run("Concurrent lookups are safe", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register(QueueName, "MyQueue")

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				value, err := registry.Lookup(QueueName)
				assert.NoError(t, err)
				assert.Equal(t, "MyQueue", value)
			}()
		}
		wg.Wait()
	})
}
