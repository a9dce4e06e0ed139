// Path: internal/resiliency/keyring.go
package resiliency

import "fmt"

// KeyRing holds one role's share of the API key pool and yields keys in
// round-robin order. The cursor is process-local; key exhaustion is
// discovered reactively through quota errors, not predicted.
type KeyRing struct {
	role   string
	keys   []string
	cursor int
}

// NewKeyRing creates a ring for the given role. An empty key list is a
// configuration error.
func NewKeyRing(role string, keys []string) (*KeyRing, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("empty key ring for role %q", role)
	}
	return &KeyRing{role: role, keys: keys}, nil
}

// Next returns the next key in rotation, wrapping around. It never fails.
func (r *KeyRing) Next() string {
	key := r.keys[r.cursor]
	r.cursor = (r.cursor + 1) % len(r.keys)
	return key
}

// Size returns the pool cardinality so callers can bound retry loops to a
// single full rotation.
func (r *KeyRing) Size() int {
	return len(r.keys)
}

// Role returns the role this ring was reserved for.
func (r *KeyRing) Role() string {
	return r.role
}
