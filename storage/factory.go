package storage

import "context"

// Factory grants batch-scoped access to state storage.
type Factory interface {
	// AccessStorage returns a fresh view over batch state. If the context
	// is cancelled before access is granted (e.g. a shutdown was
	// requested), it returns a nil view and no error: shutdown is not a
	// failure, there is just no batch to execute.
	AccessStorage(ctx context.Context) (*View, error)
}

type kvFactory struct {
	kv KVStore
}

// NewFactory returns a Factory handing out views over the given store.
func NewFactory(kv KVStore) Factory {
	return &kvFactory{kv: kv}
}

func (f *kvFactory) AccessStorage(ctx context.Context) (*View, error) {
	select {
	case <-ctx.Done():
		return nil, nil
	default:
	}
	return NewView(f.kv), nil
}
