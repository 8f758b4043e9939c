package snapshot

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadBeforePublish(t *testing.T) {
	h := NewHolder[map[string]int]()

	gen, ok := h.Load()
	require.False(t, ok)
	require.Nil(t, gen)
}

func TestPublishIncrementsVersion(t *testing.T) {
	h := NewHolder[[]string]()

	first := h.Publish([]string{"a"})
	require.Equal(t, uint64(1), first.Version)
	require.False(t, first.ProducedAt.IsZero())

	second := h.Publish([]string{"a", "b"})
	require.Equal(t, uint64(2), second.Version)

	gen, ok := h.Load()
	require.True(t, ok)
	require.Equal(t, second, gen)
	require.Equal(t, []string{"a", "b"}, gen.Data)
}

func TestOldGenerationStaysValid(t *testing.T) {
	h := NewHolder[int]()

	h.Publish(1)
	old, ok := h.Load()
	require.True(t, ok)

	h.Publish(2)
	require.Equal(t, 1, old.Data, "a loaded generation must never change under the reader")

	latest, ok := h.Load()
	require.True(t, ok)
	require.Equal(t, 2, latest.Data)
}

func TestConcurrentPublishAndLoad(t *testing.T) {
	h := NewHolder[int]()

	const writers, rounds = 4, 250

	stop := make(chan struct{})
	var torn atomic.Bool
	var readers sync.WaitGroup
	for r := 0; r < 2; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// A loaded generation is always fully formed.
				if gen, ok := h.Load(); ok {
					if gen.Version == 0 || gen.ProducedAt.IsZero() {
						torn.Store(true)
						return
					}
				}
			}
		}()
	}

	var writersWG sync.WaitGroup
	for w := 0; w < writers; w++ {
		writersWG.Add(1)
		go func() {
			defer writersWG.Done()
			for i := 0; i < rounds; i++ {
				h.Publish(i)
			}
		}()
	}

	writersWG.Wait()
	close(stop)
	readers.Wait()
	require.False(t, torn.Load(), "readers must never observe a partial generation")

	gen, ok := h.Load()
	require.True(t, ok)
	require.LessOrEqual(t, gen.Version, uint64(writers*rounds))
	require.NotZero(t, gen.Version)
}
