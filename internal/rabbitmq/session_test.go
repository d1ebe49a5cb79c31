package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestSession(t *testing.T) {
	t.Run("Commit on a non-transacted session fails", func(t *testing.T) {
		session := &Session{id: "s-1"}

		err := session.Commit()
		assert.ErrorIs(t, err, ErrNotTransacted)
	})

	t.Run("operations on a closed session fail", func(t *testing.T) {
		session := &Session{id: "s-1", closed: true}

		err := session.Publish(context.Background(), "q", amqp.Publishing{Body: []byte("x")})
		assert.ErrorIs(t, err, ErrSessionClosed)

		_, err = session.Consume("q", true)
		assert.ErrorIs(t, err, ErrSessionClosed)

		assert.ErrorIs(t, session.Commit(), ErrSessionClosed)
	})

	t.Run("Close on a closed session is a no-op", func(t *testing.T) {
		session := &Session{id: "s-1", closed: true}

		assert.NoError(t, session.Close())
		assert.NoError(t, session.Close())
	})
}

func TestTopologyManager(t *testing.T) {
	t.Run("DeclareQueue rejects an empty name", func(t *testing.T) {
		tm := NewTopologyManager(&Session{id: "s-1"})

		_, err := tm.DeclareQueue(context.Background(), QueueDeclaration{})
		assert.ErrorIs(t, err, ErrInvalidTopology)
	})

	t.Run("DeclareQueue on a closed session fails", func(t *testing.T) {
		tm := NewTopologyManager(&Session{id: "s-1", closed: true})

		_, err := tm.DeclareQueue(context.Background(), QueueDeclaration{Name: "q"})
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}
