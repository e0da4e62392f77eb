// Package parser decodes and builds advertising data (AD) structures.
package parser

import (
	"errors"
	"fmt"

	"github.com/rigado/blecentral"
)

var EmptyOrNilPdu = errors.New("nil/empty pdu")

// https://www.bluetooth.org/en-us/specification/assigned-numbers/generic-access-profile
var types = struct {
	flags       byte
	uuid16inc   byte
	uuid16comp  byte
	uuid32inc   byte
	uuid32comp  byte
	uuid128inc  byte
	uuid128comp byte
	sol16       byte
	sol32       byte
	sol128      byte
	svc16       byte
	svc32       byte
	svc128      byte
	nameshort   byte
	namecomp    byte
	txpwr       byte
	mfgdata     byte
}{
	flags:       0x01,
	uuid16inc:   0x02,
	uuid16comp:  0x03,
	uuid32inc:   0x04,
	uuid32comp:  0x05,
	uuid128inc:  0x06,
	uuid128comp: 0x07,
	sol16:       0x14,
	sol32:       0x1f,
	sol128:      0x15,
	svc16:       0x16,
	svc32:       0x20,
	svc128:      0x21,
	nameshort:   0x08,
	namecomp:    0x09,
	txpwr:       0x0a,
	mfgdata:     0xff,
}

type field int

const (
	fieldFlags field = iota
	fieldServices
	fieldSolicited
	fieldServiceData
	fieldName
	fieldTxPower
	fieldMFG
)

// Fields is the decoded content of an advertising payload.
type Fields struct {
	Flags       []byte            `json:"flags,omitempty"`
	Name        string            `json:"name,omitempty"`
	Services    []blecentral.UUID `json:"services,omitempty"`
	Solicited   []blecentral.UUID `json:"solicited,omitempty"`
	ServiceData map[string][]byte `json:"serviceData,omitempty"`
	TxPower     *int8             `json:"txPower,omitempty"`
	MFG         []byte            `json:"mfg,omitempty"`
}

// Empty reports whether nothing was decoded.
func (f *Fields) Empty() bool {
	return len(f.Flags) == 0 && f.Name == "" && len(f.Services) == 0 &&
		len(f.Solicited) == 0 && len(f.ServiceData) == 0 && f.TxPower == nil && len(f.MFG) == 0
}

type pduRecord struct {
	arrayElementSz int
	minSz          int
	svcDataUUIDSz  int
	field          field
}

var pduDecodeMap = map[byte]pduRecord{
	types.uuid16inc:   {arrayElementSz: 2, minSz: 2, field: fieldServices},
	types.uuid16comp:  {arrayElementSz: 2, minSz: 2, field: fieldServices},
	types.uuid32inc:   {arrayElementSz: 4, minSz: 4, field: fieldServices},
	types.uuid32comp:  {arrayElementSz: 4, minSz: 4, field: fieldServices},
	types.uuid128inc:  {arrayElementSz: 16, minSz: 16, field: fieldServices},
	types.uuid128comp: {arrayElementSz: 16, minSz: 16, field: fieldServices},
	types.sol16:       {arrayElementSz: 2, minSz: 2, field: fieldSolicited},
	types.sol32:       {arrayElementSz: 4, minSz: 4, field: fieldSolicited},
	types.sol128:      {arrayElementSz: 16, minSz: 16, field: fieldSolicited},
	types.svc16:       {minSz: 2, svcDataUUIDSz: 2, field: fieldServiceData},
	types.svc32:       {minSz: 4, svcDataUUIDSz: 4, field: fieldServiceData},
	types.svc128:      {minSz: 16, svcDataUUIDSz: 16, field: fieldServiceData},
	types.namecomp:    {minSz: 1, field: fieldName},
	types.nameshort:   {minSz: 1, field: fieldName},
	types.txpwr:       {minSz: 1, field: fieldTxPower},
	types.mfgdata:     {minSz: 1, field: fieldMFG},
	types.flags:       {minSz: 1, field: fieldFlags},
}

func getArray(size int, bytes []byte) ([]blecentral.UUID, error) {
	//valid size?
	if size <= 0 {
		return nil, fmt.Errorf("invalid size")
	}

	//bytes empty/nil?
	if len(bytes) == 0 {
		return nil, fmt.Errorf("nil/empty bytes")
	}

	//any remainder?
	count := len(bytes) / size
	rem := len(bytes) % size
	if rem != 0 || count == 0 {
		return nil, fmt.Errorf("incorrect size")
	}

	arr := make([]blecentral.UUID, 0, count)
	for j := 0; j < len(bytes); j += size {
		u, err := blecentral.UUIDFromLE(bytes[j:(j + size)])
		if err != nil {
			return nil, err
		}
		arr = append(arr, u)
	}

	return arr, nil
}

// Parse decodes the AD structures of an advertising or scan response
// payload. Unknown types are skipped. On error the fields decoded so far
// are returned with it.
func Parse(pdu []byte) (*Fields, error) {
	if len(pdu) == 0 {
		return nil, EmptyOrNilPdu
	}

	f := &Fields{}
	for i := 0; (i + 1) < len(pdu); {
		//length @ offset 0
		//type @ offset 1
		//data @ 1 - (length-1)
		length := int(pdu[i])
		typ := pdu[i+1]

		//length should be more than 1 since there is a type byte
		if length < 1 {
			return f, fmt.Errorf("invalid record length %v, idx %v", length, i)
		}

		//do we have all the bytes for the payload?
		if (i + length) >= len(pdu) {
			return f, fmt.Errorf("buffer overflow: want %v, have %v, idx %v", i+length, len(pdu), i)
		}

		start := i + 2
		end := start + length - 1
		bytes := make([]byte, len(pdu[start:end]))
		copy(bytes, pdu[start:end])

		dec, ok := pduDecodeMap[typ]
		if ok && len(bytes) != 0 {
			if err := f.add(dec, bytes); err != nil {
				return f, fmt.Errorf("adv type %v, idx %v: %w", typ, i, err)
			}
		}

		i += length + 1
	}

	return f, nil
}

func (f *Fields) add(dec pduRecord, bytes []byte) error {
	//have min length?
	if dec.minSz > len(bytes) {
		return fmt.Errorf("min length %v, have %v", dec.minSz, len(bytes))
	}

	switch {
	case dec.arrayElementSz > 0:
		arr, err := getArray(dec.arrayElementSz, bytes)
		if err != nil {
			return err
		}
		if dec.field == fieldSolicited {
			f.Solicited = append(f.Solicited, arr...)
		} else {
			f.Services = append(f.Services, arr...)
		}

	case dec.svcDataUUIDSz > 0:
		u, err := blecentral.UUIDFromLE(bytes[:dec.svcDataUUIDSz])
		if err != nil {
			return err
		}
		if f.ServiceData == nil {
			f.ServiceData = make(map[string][]byte)
		}
		su := u.String()
		f.ServiceData[su] = append(f.ServiceData[su], bytes[dec.svcDataUUIDSz:]...)

	case dec.field == fieldName:
		f.Name = string(bytes)

	case dec.field == fieldTxPower:
		tx := int8(bytes[0])
		f.TxPower = &tx

	case dec.field == fieldFlags:
		f.Flags = append(f.Flags, bytes...)

	case dec.field == fieldMFG:
		if len(f.MFG) != 0 && len(bytes) >= 2 {
			//mfg data contains the company id again in the scan response
			//strip that out
			bytes = bytes[2:]
		}
		f.MFG = append(f.MFG, bytes...)
	}

	return nil
}
