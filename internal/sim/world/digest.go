package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"marswalk/internal/sim/registry"
)

// Digest hashes the tick and every agent position. states must be in ascending id order,
// which is what Registry.States returns.
func Digest(tick uint64, states []registry.AgentState) string {
	h := sha256.New()
	var tmp [8]byte
	digestWriteU64(h, &tmp, tick)
	digestWriteU64(h, &tmp, uint64(len(states)))
	for _, s := range states {
		digestWriteI64(h, &tmp, int64(s.ID))
		digestWriteI64(h, &tmp, int64(s.Pos.X))
		digestWriteI64(h, &tmp, int64(s.Pos.Y))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h hash.Hash, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hash.Hash, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}
