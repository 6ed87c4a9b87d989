package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"

	"spancraft.ai/internal/sim/world/logic/power"
)

// StateDigest hashes blocks, conductor endpoints and challenge spend. Conductor
// order and direction do not affect it.
func (w *World) StateDigest() string {
	h := sha256.New()
	var tmp [8]byte
	write := func(v int64) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		h.Write(tmp[:])
	}

	sd := w.store.Digest()
	h.Write(sd[:])

	edges := make([]power.Edge, 0, len(w.conductors))
	for _, c := range w.conductors {
		e := c.Edge()
		if e.To.Pos().Less(e.From.Pos()) {
			e.From, e.To = e.To, e.From
		}
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From.Pos().Less(edges[j].From.Pos())
		}
		return edges[i].To.Pos().Less(edges[j].To.Pos())
	})
	write(int64(len(edges)))
	for _, e := range edges {
		for _, v := range []int{e.From.X, e.From.Y, e.From.Z, e.To.X, e.To.Y, e.To.Z} {
			write(int64(v))
		}
	}

	h.Write([]byte(w.challenge.State))
	write(int64(w.challenge.Spent))
	return hex.EncodeToString(h.Sum(nil))
}
