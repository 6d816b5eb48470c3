package witness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueAdmission(t *testing.T) {
	queue := NewQueue(2, nil)

	status, err := queue.Submit(&Artifact{BatchNumber: 1})
	require.NoError(t, err)
	require.Equal(t, StatusAvailable, status)

	// The submit that takes the last slot reports Full.
	status, err = queue.Submit(&Artifact{BatchNumber: 2})
	require.NoError(t, err)
	require.Equal(t, StatusFull, status)

	// Beyond capacity the artifact is rejected.
	status, err = queue.Submit(&Artifact{BatchNumber: 3})
	require.ErrorIs(t, err, ErrQueueFull)
	require.Equal(t, StatusFull, status)
	require.Equal(t, 2, queue.Len())
}

func TestQueueDrainInOrder(t *testing.T) {
	queue := NewQueue(4, nil)
	for i := uint64(1); i <= 3; i++ {
		_, err := queue.Submit(&Artifact{BatchNumber: i})
		require.NoError(t, err)
	}

	for i := uint64(1); i <= 3; i++ {
		a := queue.Next()
		require.NotNil(t, a)
		require.Equal(t, i, a.BatchNumber)
	}
	require.Nil(t, queue.Next())
}

func TestQueueNotify(t *testing.T) {
	queue := NewQueue(2, nil)

	_, err := queue.Submit(&Artifact{BatchNumber: 1})
	require.NoError(t, err)

	select {
	case <-queue.NotifyCh():
	default:
		t.Fatal("expected notification after submit")
	}
}

func TestQueueFreesSlotAfterDrain(t *testing.T) {
	queue := NewQueue(1, nil)

	_, err := queue.Submit(&Artifact{BatchNumber: 1})
	require.NoError(t, err)
	_, err = queue.Submit(&Artifact{BatchNumber: 2})
	require.ErrorIs(t, err, ErrQueueFull)

	require.NotNil(t, queue.Next())

	status, err := queue.Submit(&Artifact{BatchNumber: 2})
	require.NoError(t, err)
	require.Equal(t, StatusFull, status)
}

func TestQueueInvalidCapacityPanics(t *testing.T) {
	require.Panics(t, func() { NewQueue(0, nil) })
}
