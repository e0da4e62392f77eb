package blecentral

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rigado/blecentral/sliceops"
)

// UUID is an attribute type. U16 is non-zero for SIG assigned 16-bit
// UUIDs; U128 always carries the full value in display order.
type UUID struct {
	U16  uint16
	U128 [16]byte
}

// baseUUID is 00000000-0000-1000-8000-00805F9B34FB.
var baseUUID = [16]byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0x80, 0x5f, 0x9b, 0x34, 0xfb,
}

// UUID16 expands a 16-bit UUID over the Bluetooth base UUID.
func UUID16(v uint16) UUID {
	u := UUID{U16: v, U128: baseUUID}
	binary.BigEndian.PutUint16(u.U128[2:4], v)
	return u
}

// UUID128 builds a UUID from display-order bytes, shortening it when it
// lies on the base UUID.
func UUID128(b [16]byte) UUID {
	u := UUID{U128: b}
	if b[0] == 0 && b[1] == 0 && onBase(b) {
		u.U16 = binary.BigEndian.Uint16(b[2:4])
	}
	return u
}

func onBase(b [16]byte) bool {
	for i := 4; i < 16; i++ {
		if b[i] != baseUUID[i] {
			return false
		}
	}
	return true
}

// UUIDFromLE decodes a 2, 4 or 16 byte little-endian UUID as it appears
// on the air.
func UUIDFromLE(b []byte) (UUID, error) {
	switch len(b) {
	case 2:
		return UUID16(binary.LittleEndian.Uint16(b)), nil
	case 4:
		u := baseUUID
		binary.BigEndian.PutUint32(u[0:4], binary.LittleEndian.Uint32(b))
		return UUID128(u), nil
	case 16:
		var u [16]byte
		copy(u[:], sliceops.SwapBuf(b))
		return UUID128(u), nil
	}
	return UUID{}, fmt.Errorf("invalid uuid length %d", len(b))
}

// ParseUUID accepts the short hex form (180f) or the dashed 128-bit form.
func ParseUUID(s string) (UUID, error) {
	h := strings.Replace(strings.TrimSpace(s), "-", "", -1)
	b, err := hex.DecodeString(h)
	if err != nil {
		return UUID{}, fmt.Errorf("invalid uuid %q: %v", s, err)
	}
	switch len(b) {
	case 2:
		return UUID16(binary.BigEndian.Uint16(b)), nil
	case 16:
		var u [16]byte
		copy(u[:], b)
		return UUID128(u), nil
	}
	return UUID{}, fmt.Errorf("invalid uuid %q", s)
}

// Len is the on-air size of the UUID.
func (u UUID) Len() int {
	if u.U16 != 0 {
		return 2
	}
	return 16
}

// LE returns the on-air little-endian encoding.
func (u UUID) LE() []byte {
	if u.U16 != 0 {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, u.U16)
		return b
	}
	return sliceops.SwapBuf(u.U128[:])
}

// String renders 16-bit UUIDs as four hex digits and everything else in
// the dashed 8-4-4-4-12 form.
func (u UUID) String() string {
	if u.U16 != 0 {
		return fmt.Sprintf("%04x", u.U16)
	}
	b := u.U128
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}
