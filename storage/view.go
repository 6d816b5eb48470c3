package storage

import (
	"errors"
	"sort"
	"time"
)

// View is a read-through, write-buffering view over batch state. All writes
// are kept in an in-memory overlay until Flush; reads are served from the
// overlay first and fall back to the backing KVStore, caching the result for
// the lifetime of the batch.
//
// The view additionally records the first value observed for every key read
// since batch start (the witness input for proof generation) and a diff of
// all keys written.
//
// A View is owned exclusively by the VM of one batch. It is not safe for
// concurrent use, and its metrics must only be inspected after the VM has
// released it.
type View struct {
	kv KVStore

	readCache    map[string][]byte
	initialReads map[string][]byte
	writes       map[string][]byte

	// snapshots is a LIFO stack of overlay checkpoints.
	snapshots []map[string][]byte

	metrics Metrics
}

// Metrics accumulates storage access statistics for one batch.
type Metrics struct {
	GetCount       uint64
	SetCount       uint64
	TimeSpentOnGet time.Duration
	TimeSpentOnSet time.Duration
}

// WitnessState is the captured storage input of a batch, used downstream as
// proof-generation input.
type WitnessState struct {
	// ReadValues maps every key read during the batch to the value it had
	// before the batch started.
	ReadValues map[string][]byte

	// WrittenKeys lists every key written during the batch, sorted.
	WrittenKeys []string
}

// NewView creates a view over the given backing store.
func NewView(kv KVStore) *View {
	return &View{
		kv:           kv,
		readCache:    make(map[string][]byte),
		initialReads: make(map[string][]byte),
		writes:       make(map[string][]byte),
	}
}

// Get reads the current value of a key. A key absent from the backing store
// reads as nil, which is not an error.
func (v *View) Get(key []byte) ([]byte, error) {
	start := time.Now()
	defer func() {
		v.metrics.GetCount++
		v.metrics.TimeSpentOnGet += time.Since(start)
	}()

	k := string(key)
	if val, ok := v.writes[k]; ok {
		return val, nil
	}
	base, err := v.baseValue(k)
	if err != nil {
		return nil, err
	}
	return base, nil
}

func (v *View) baseValue(k string) ([]byte, error) {
	if val, ok := v.readCache[k]; ok {
		return val, nil
	}
	val, err := v.kv.Get([]byte(k))
	if errors.Is(err, ErrKeyNotFound) {
		val, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.readCache[k] = val
	v.initialReads[k] = val
	return val, nil
}

// Set writes a value into the overlay.
func (v *View) Set(key, value []byte) {
	start := time.Now()
	v.writes[string(key)] = value
	v.metrics.SetCount++
	v.metrics.TimeSpentOnSet += time.Since(start)
}

// Snapshot pushes a checkpoint of the write overlay onto the snapshot stack.
func (v *View) Snapshot() {
	cp := make(map[string][]byte, len(v.writes))
	for k, val := range v.writes {
		cp[k] = val
	}
	v.snapshots = append(v.snapshots, cp)
}

// RollbackSnapshot pops the latest checkpoint and restores the overlay to it.
// It panics if no snapshot exists; snapshot misuse is a logic error.
func (v *View) RollbackSnapshot() {
	v.writes = v.popSnapshot()
}

// CommitSnapshot pops the latest checkpoint, keeping the overlay as is.
func (v *View) CommitSnapshot() {
	v.popSnapshot()
}

func (v *View) popSnapshot() map[string][]byte {
	if len(v.snapshots) == 0 {
		panic("storage view: no snapshot to resolve")
	}
	top := v.snapshots[len(v.snapshots)-1]
	v.snapshots = v.snapshots[:len(v.snapshots)-1]
	return top
}

// SnapshotDepth returns the number of unresolved snapshots.
func (v *View) SnapshotDepth() int {
	return len(v.snapshots)
}

// Diff returns a copy of all keys written since batch start together with
// their final values.
func (v *View) Diff() map[string][]byte {
	diff := make(map[string][]byte, len(v.writes))
	for k, val := range v.writes {
		diff[k] = val
	}
	return diff
}

// WitnessState captures the storage inputs of the batch.
func (v *View) WitnessState() *WitnessState {
	reads := make(map[string][]byte, len(v.initialReads))
	for k, val := range v.initialReads {
		reads[k] = val
	}
	keys := make([]string, 0, len(v.writes))
	for k := range v.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &WitnessState{ReadValues: reads, WrittenKeys: keys}
}

// Metrics returns the accumulated access statistics.
func (v *View) Metrics() Metrics {
	return v.metrics
}

// Flush persists the write overlay into the backing store. It is called by
// the owner after the batch is sealed.
func (v *View) Flush() error {
	for k, val := range v.writes {
		if err := v.kv.Set([]byte(k), val); err != nil {
			return err
		}
	}
	return nil
}
