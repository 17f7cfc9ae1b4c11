package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Params holds the named parameters that distinguish one invocation of an
// operation from another. Callers pass parameters explicitly; nothing is
// inferred from the call site.
type Params map[string]any

// Key identifies one operation on one resource with one parameter set.
type Key string

// Make builds the idempotency key for (operation, resourceID, params).
// Parameters are folded into the hash sorted by name. Values that cannot be
// JSON-encoded contribute their Go type name instead, so the key stays
// deterministic without requiring every parameter to be serializable.
// Make never fails.
func Make(operation, resourceID string, params Params) Key {
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write([]byte(resourceID))

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{'='})
		data, err := json.Marshal(params[name])
		if err != nil {
			data = []byte(fmt.Sprintf("%T", params[name]))
		}
		h.Write(data)
	}

	sum := h.Sum(nil)
	return Key(fmt.Sprintf("%s:%s:%s", operation, resourceID, hex.EncodeToString(sum[:16])))
}

// LockKey returns the sub-key holding the lock record.
func (k Key) LockKey() string { return "lock:" + string(k) }

// ResultKey returns the sub-key holding the cached result.
func (k Key) ResultKey() string { return "result:" + string(k) }

// AttemptsKey returns the sub-key used for optional attempt counters.
func (k Key) AttemptsKey() string { return "attempts:" + string(k) }

func (k Key) String() string { return string(k) }
