package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Digest hashes the committed collection. Equal digests mean bit-identical state.
func (e *Engine) Digest() string {
	h := sha256.New()
	var buf [8]byte
	putF := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(len(e.bodies)))
	h.Write(buf[:])
	for _, b := range e.bodies {
		putF(b.Pos.X)
		putF(b.Pos.Y)
		putF(b.Prev.X)
		putF(b.Prev.Y)
		putF(b.Mass)
		flags := uint64(b.Tag) << 1
		if b.Fixed {
			flags |= 1
		}
		binary.LittleEndian.PutUint64(buf[:], flags)
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
