// Package idgen generates ObjectID-style event identifiers. Request
// correlation IDs are not made here (cmd/livia uses uuid for those).
// Grounded on the teacher's
// pkg/utils/id.go ObjectID-style generator.
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"
)

var counter uint32

// New generates a 12-byte ObjectID-like string (24 hex characters):
// 4-byte unix timestamp, 5 random bytes, a 3-byte process-local counter.
func New() string {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], uint32(time.Now().Unix()))
	_, _ = rand.Read(b[4:9])
	c := atomic.AddUint32(&counter, 1) % 0xFFFFFF
	b[9] = byte(c >> 16)
	b[10] = byte(c >> 8)
	b[11] = byte(c)
	return hex.EncodeToString(b[:])
}
