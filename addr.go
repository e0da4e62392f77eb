package blecentral

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddrType is the LE address type of a device.
type AddrType uint8

const (
	AddrTypePublic AddrType = 0x00
	AddrTypeRandom AddrType = 0x01
)

func (t AddrType) String() string {
	switch t {
	case AddrTypePublic:
		return "public"
	case AddrTypeRandom:
		return "random"
	}
	return fmt.Sprintf("type-%d", uint8(t))
}

// ParseAddrType accepts "public", "random" or the numeric form.
func ParseAddrType(s string) (AddrType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "0":
		return AddrTypePublic, nil
	case "random", "1":
		return AddrTypeRandom, nil
	}
	return 0, fmt.Errorf("invalid address type %q", s)
}

// Addr identifies an LE device. MAC is kept in display order, most
// significant byte first.
type Addr struct {
	Type AddrType
	MAC  [6]byte
}

// NewAddr creates an Addr from a type and a display-order MAC.
func NewAddr(t AddrType, mac [6]byte) Addr {
	return Addr{Type: t, MAC: mac}
}

// ParseAddr parses colon separated hex, e.g. 00:1B:DC:07:32:EF.
func ParseAddr(s string, t AddrType) (Addr, error) {
	hexStr := strings.Replace(strings.TrimSpace(s), ":", "", -1)
	if len(hexStr) != 12 {
		return Addr{}, fmt.Errorf("invalid address %q", s)
	}

	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return Addr{}, fmt.Errorf("invalid address %q: %v", s, err)
	}

	a := Addr{Type: t}
	copy(a.MAC[:], b)
	return a, nil
}

func (a Addr) String() string {
	m := a.MAC
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

func (a Addr) IsZero() bool {
	return a.MAC == [6]byte{}
}

func (a Addr) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
