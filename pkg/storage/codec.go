package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"

	"github.com/holiman/uint256"
)

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// Balances are stored as fixed 32-byte big-endian values.
func encodeBalance(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

func decodeBalance(b []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(b)
}

func encodeCounters(nextOrderID, nextTradeID uint64) []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], nextOrderID)
	binary.BigEndian.PutUint64(b[8:], nextTradeID)
	return b[:]
}

func decodeCounters(b []byte) (uint64, uint64) {
	if len(b) != 16 {
		return 0, 0
	}
	return binary.BigEndian.Uint64(b[:8]), binary.BigEndian.Uint64(b[8:])
}
