package boltstore

import (
	"encoding/binary"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
)

// Bucket name constants for bbolt storage.
var (
	bucketMeta      = []byte("meta")
	bucketGlobals   = []byte("globals")
	bucketInstances = []byte("instances")
	bucketTimers    = []byte("timers")
	bucketEntities  = []byte("entities")
)

// Meta key constants.
var (
	keyFormat   = []byte("format")
	keyClock    = []byte("clock")
	keyTimerSeq = []byte("timerseq")
	keySavedAt  = []byte("savedat")
)

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

// refToKey converts a Ref to an 8-byte big-endian key.
// We offset by a large constant so negative refs (Nothing=-1, etc.) sort correctly.
func refToKey(ref gamedb.Ref) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(int64(ref)+1<<32))
	return buf
}

// keyToRef converts an 8-byte big-endian key back to a Ref.
func keyToRef(b []byte) gamedb.Ref {
	v := binary.BigEndian.Uint64(b)
	return gamedb.Ref(int64(v) - 1<<32)
}

// intToKey converts an int64 to an 8-byte big-endian key.
func intToKey(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// keyToInt converts an 8-byte big-endian key back to an int64.
func keyToInt(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
