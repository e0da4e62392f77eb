package blecentral

// Characteristic property bits.
const (
	CharBroadcast   = 0x01
	CharRead        = 0x02
	CharWriteNR     = 0x04
	CharWrite       = 0x08
	CharNotify      = 0x10
	CharIndicate    = 0x20
	CharSignedWrite = 0x40
	CharExtended    = 0x80
)

// Service is a primary service found by discovery.
type Service struct {
	StartHandle uint16 `json:"startHandle"`
	EndHandle   uint16 `json:"endHandle"`
	UUID        UUID   `json:"uuid"`
}

// Characteristic is a characteristic declaration within a service.
type Characteristic struct {
	StartHandle uint16 `json:"startHandle"`
	ValueHandle uint16 `json:"valueHandle"`
	EndHandle   uint16 `json:"endHandle"`
	Properties  byte   `json:"properties"`
	UUID        UUID   `json:"uuid"`
}

var propNames = []struct {
	bit  byte
	name string
}{
	{CharBroadcast, "B"},
	{CharRead, "R"},
	{CharWriteNR, "w"},
	{CharWrite, "W"},
	{CharNotify, "N"},
	{CharIndicate, "I"},
	{CharSignedWrite, "S"},
	{CharExtended, "E"},
}

// PropString renders a property byte as one letter per set bit.
func PropString(p byte) string {
	var s string
	for _, pn := range propNames {
		if p&pn.bit != 0 {
			s += pn.name
		}
	}
	return s
}
