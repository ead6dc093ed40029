package engine

import (
	"time"

	"github.com/redquill/redquill/src/opserver/types"
)

// FactStore holds the append-only fact set for one operation. A key may carry
// many values over time; Resolve picks the most recent per key. The store
// does not trigger scheduling and is not safe for concurrent use on its own:
// callers serialize access under the owning operation's lock.
type FactStore struct {
	operationID string
	byKey       map[string][]types.Fact
	version     uint64
}

// NewFactStore returns an empty store scoped to one operation.
func NewFactStore(operationID string) *FactStore {
	return &FactStore{
		operationID: operationID,
		byKey:       map[string][]types.Fact{},
	}
}

// Put appends a new fact version and bumps the snapshot counter. sourceLink
// is empty for operator-seeded facts.
func (s *FactStore) Put(key, value, sourceLink string) types.Fact {
	fact := types.Fact{
		OperationID: s.operationID,
		Key:         key,
		Value:       value,
		SourceLink:  sourceLink,
		CreatedAt:   time.Now().UTC(),
	}
	s.byKey[key] = append(s.byKey[key], fact)
	s.version++
	return fact
}

// Resolve returns one concrete value per required key (most recent wins) or
// the list of keys that are still unresolved.
func (s *FactStore) Resolve(required []string) (map[string]string, []string) {
	values := make(map[string]string, len(required))
	var missing []string
	for _, key := range required {
		versions := s.byKey[key]
		if len(versions) == 0 {
			missing = append(missing, key)
			continue
		}
		values[key] = versions[len(versions)-1].Value
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return values, nil
}

// Version returns the monotonically increasing snapshot counter, bumped on
// every Put.
func (s *FactStore) Version() uint64 {
	return s.version
}

// All returns every fact in the store, in append order per key.
func (s *FactStore) All() []types.Fact {
	var out []types.Fact
	for _, versions := range s.byKey {
		out = append(out, versions...)
	}
	return out
}
