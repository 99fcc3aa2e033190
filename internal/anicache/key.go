package anicache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Key identifies one cached upstream call. The canonical string form is
// "provider:method:argsHash" and is what both tiers index on.
type Key struct {
	Provider string
	Method   string
	ArgsHash string
	ArgsJSON string
}

// NewKey builds a Key from call arguments. Marshaling through encoding/json
// sorts map keys at every nesting level, so equal argument maps always
// produce the same hash regardless of insertion order.
func NewKey(provider, method string, args map[string]any) Key {
	argsJSON := "{}"
	if len(args) > 0 {
		if data, err := json.Marshal(args); err == nil {
			argsJSON = string(data)
		}
	}
	h := sha256.Sum256([]byte(argsJSON))
	return Key{
		Provider: provider,
		Method:   method,
		ArgsHash: hex.EncodeToString(h[:])[:16],
		ArgsJSON: argsJSON,
	}
}

// String returns the canonical cache key.
func (k Key) String() string {
	return k.Provider + ":" + k.Method + ":" + k.ArgsHash
}
