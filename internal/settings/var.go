package settings

import (
	"encoding/json"
	"sync"

	"github.com/clefbot/clef/internal/bus"
)

// Var materializes a settings key's stream into a shared, lock-guarded cell
// kept current by a background driver goroutine, so hot-path readers never
// block behind a channel receive.
type Var[T any] struct {
	mu     sync.RWMutex
	value  T
	def    T
	sub    *bus.Reader[Change]
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewVar subscribes to key on s and starts the driver goroutine, seeding the
// cell from the current committed value if one exists, or def otherwise.
func NewVar[T any](s *Store, key string, def T) *Var[T] {
	reader, raw, ok := s.Stream(key)
	v := &Var[T]{
		value:  def,
		def:    def,
		sub:    reader,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if ok {
		var cur T
		if err := json.Unmarshal(raw, &cur); err == nil {
			v.value = cur
		}
	}
	go v.loop()
	return v
}

func (v *Var[T]) loop() {
	defer close(v.doneCh)
	for {
		select {
		case change, ok := <-v.sub.Messages():
			if !ok {
				return
			}
			v.mu.Lock()
			switch change.Kind {
			case ChangeSet:
				var next T
				if err := json.Unmarshal(change.Value, &next); err == nil {
					v.value = next
				}
			case ChangeClear:
				v.value = v.def
			}
			v.mu.Unlock()
		case <-v.stopCh:
			return
		}
	}
}

// Get returns the cell's current value.
func (v *Var[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Close stops the driver goroutine and unsubscribes from the store.
func (v *Var[T]) Close() {
	select {
	case <-v.stopCh:
	default:
		close(v.stopCh)
	}
	v.sub.Close()
	<-v.doneCh
}
