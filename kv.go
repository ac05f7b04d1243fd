package zddlsm

// KV is a (key, level) pair yielded by Iterator. Key is the internal key
// image without its 4-byte cf prefix (see Iterator.Deref for what that
// means when a non-identity compressor is in play); it is a fresh copy the
// caller may retain freely.
type KV struct {
	Key   []byte
	Level uint32
}

// Equal reports whether kv and o carry the same key bytes and level.
func (kv KV) Equal(o KV) bool {
	if kv.Level != o.Level || len(kv.Key) != len(o.Key) {
		return false
	}
	for i := range kv.Key {
		if kv.Key[i] != o.Key[i] {
			return false
		}
	}
	return true
}
