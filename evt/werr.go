package evt

import (
	"encoding/binary"
	"fmt"

	"github.com/rigado/blecentral/sliceops"
)

//get or default
func getByte(b []byte, i int, def byte) (byte, error) {
	bb, err := getBytes(b, i, 1)
	if err != nil {
		return def, err
	}
	return bb[0], nil
}

//get or default
func getUint16LE(b []byte, i int, def uint16) (uint16, error) {
	bb, err := getBytes(b, i, 2)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint16(bb), nil
}

func getUint32LE(b []byte, i int, def uint32) (uint32, error) {
	bb, err := getBytes(b, i, 4)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint32(bb), nil
}

// getAddr reads a wire-order address and returns it in display order.
func getAddr(b []byte, i int) ([6]byte, error) {
	bb, err := getBytes(b, i, 6)
	if err != nil {
		return [6]byte{}, err
	}
	var a [6]byte
	copy(a[:], bb)
	return sliceops.SwapAddr(a), nil
}

// getBytes returns a capacity-limited view of b[start:start+count], or
// b[start:] when count is negative.
func getBytes(b []byte, start int, count int) ([]byte, error) {
	if start < 0 || start > len(b) {
		return nil, fmt.Errorf("index error: start %v, len %v", start, len(b))
	}

	if count < 0 {
		return b[start:], nil
	}

	//end is non-inclusive
	end := start + count
	if end > len(b) {
		return nil, fmt.Errorf("index error: want %v, have %v", end, len(b))
	}

	return b[start:end:end], nil
}

func putUint16LE(b []byte, v uint16) []byte {
	var u [2]byte
	binary.LittleEndian.PutUint16(u[:], v)
	return append(b, u[:]...)
}

func putAddr(b []byte, a [6]byte) []byte {
	w := sliceops.SwapAddr(a)
	return append(b, w[:]...)
}
