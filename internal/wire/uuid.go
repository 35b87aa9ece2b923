package wire

import (
	"github.com/google/uuid"
)

// SplitUUID converts a UUID into two sign-preserving 64-bit halves, per the
// wire format's BIG_ENDIAN int64 pair encoding. The UUID's 128 bits are
// read as two unsigned 64-bit halves, then each is reinterpreted as signed
// two's-complement by subtracting 2^64 when its high bit is set.
func SplitUUID(id uuid.UUID) (msb, lsb int64) {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(id[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(id[i])
	}
	return signedFromUnsigned(hi), signedFromUnsigned(lo)
}

// JoinUUID is the inverse of SplitUUID.
func JoinUUID(msb, lsb int64) uuid.UUID {
	hi := unsignedFromSigned(msb)
	lo := unsignedFromSigned(lsb)
	var id uuid.UUID
	for i := 7; i >= 0; i-- {
		id[i] = byte(hi)
		hi >>= 8
	}
	for i := 15; i >= 8; i-- {
		id[i] = byte(lo)
		lo >>= 8
	}
	return id
}

func signedFromUnsigned(u uint64) int64 {
	return int64(u)
}

func unsignedFromSigned(s int64) uint64 {
	return uint64(s)
}
