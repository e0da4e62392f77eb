package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/rigado/blecentral"
)

// MaxPayload bounds a rebuilt payload: an advertisement plus its scan response.
const MaxPayload = 62

// Builder assembles AD structures. Structures that would overflow
// MaxPayload are dropped and reported by Err.
type Builder struct {
	b   []byte
	err error
}

func (p *Builder) append(typ byte, data []byte) {
	need := len(data) + 2
	if len(p.b)+need > MaxPayload {
		if p.err == nil {
			p.err = fmt.Errorf("adv type %v: %v bytes do not fit, %v used", typ, need, len(p.b))
		}
		return
	}
	p.b = append(p.b, byte(len(data)+1), typ)
	p.b = append(p.b, data...)
}

// Flags adds the flags structure.
func (p *Builder) Flags(f byte) *Builder {
	p.append(types.flags, []byte{f})
	return p
}

// Name adds the complete local name.
func (p *Builder) Name(n string) *Builder {
	if n != "" {
		p.append(types.namecomp, []byte(n))
	}
	return p
}

// TxPower adds the tx power level.
func (p *Builder) TxPower(dbm int8) *Builder {
	p.append(types.txpwr, []byte{byte(dbm)})
	return p
}

// Services adds complete service UUID lists, one per UUID size.
func (p *Builder) Services(uu []blecentral.UUID) *Builder {
	var u16, u128 []byte
	for _, u := range uu {
		if u.Len() == 2 {
			u16 = append(u16, u.LE()...)
		} else {
			u128 = append(u128, u.LE()...)
		}
	}
	if len(u16) != 0 {
		p.append(types.uuid16comp, u16)
	}
	if len(u128) != 0 {
		p.append(types.uuid128comp, u128)
	}
	return p
}

// ServiceData adds one service data structure.
func (p *Builder) ServiceData(u blecentral.UUID, data []byte) *Builder {
	typ := types.svc16
	if u.Len() != 2 {
		typ = types.svc128
	}
	p.append(typ, append(u.LE(), data...))
	return p
}

// ManufacturerData adds manufacturer specific data for a company id.
func (p *Builder) ManufacturerData(company uint16, data []byte) *Builder {
	b := make([]byte, 2, 2+len(data))
	binary.LittleEndian.PutUint16(b, company)
	p.append(types.mfgdata, append(b, data...))
	return p
}

// Bytes returns the payload built so far.
func (p *Builder) Bytes() []byte {
	return p.b
}

func (p *Builder) Err() error {
	return p.err
}
