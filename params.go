package blecentral

import "fmt"

const (
	FilterPolicyAcceptAll       = 0
	FilterPolicyAcceptWhitelist = 1

	LEScanIntervalMin = 0x0004
	LEScanIntervalMax = 0x4000
	LEScanWindowMin   = 0x0004
	LEScanWindowMax   = 0x4000

	ConnIntervalMin = 0x0006
	ConnIntervalMax = 0x0c80
	ConnLatencyMin  = 0x0000
	ConnLatencyMax  = 0x01f3

	SupervisionTimeoutMin = 0x000a
	SupervisionTimeoutMax = 0x0c80

	CELengthMin = 0x0000
	CELengthMax = 0xffff
)

// ConnParams are the parameters of an LE create connection command.
type ConnParams struct {
	ScanInterval       uint16 // 0x0004 - 0x4000; N * 0.625 msec
	ScanWindow         uint16 // 0x0004 - 0x4000; N * 0.625 msec
	FilterPolicy       uint8
	Peer               Addr
	OwnAddressType     AddrType
	ConnIntervalMin    uint16 // 0x0006 - 0x0C80; N * 1.25 msec
	ConnIntervalMax    uint16 // 0x0006 - 0x0C80; N * 1.25 msec
	ConnLatency        uint16 // 0x0000 - 0x01F3
	SupervisionTimeout uint16 // 0x000A - 0x0C80; N * 10 msec
	MinimumCELength    uint16 // N * 0.625 msec
	MaximumCELength    uint16 // N * 0.625 msec
}

// DefaultConnParams returns the parameters the harness connects to peer with.
func DefaultConnParams(peer Addr) ConnParams {
	return ConnParams{
		ScanInterval:       1000,
		ScanWindow:         1000,
		FilterPolicy:       FilterPolicyAcceptAll,
		Peer:               peer,
		OwnAddressType:     AddrTypePublic,
		ConnIntervalMin:    80,
		ConnIntervalMax:    80,
		ConnLatency:        0,
		SupervisionTimeout: 2000,
		MinimumCELength:    0,
		MaximumCELength:    1000,
	}
}

// ConnUpdateParams are the parameters of a connection parameter update request.
type ConnUpdateParams struct {
	IntervalMin        uint16
	IntervalMax        uint16
	Latency            uint16
	SupervisionTimeout uint16
}

// DefaultConnUpdateParams is what the update command requests.
var DefaultConnUpdateParams = ConnUpdateParams{
	IntervalMin:        50,
	IntervalMax:        120,
	Latency:            0,
	SupervisionTimeout: 550,
}

// The supervision timeout in milliseconds shall be larger than
// (1 + latency) * intervalMax * 2, with intervalMax in milliseconds.
func supervisionTooSmall(latency, intervalMax, timeout uint16) bool {
	minStoMs := (1 + float64(latency)) * (float64(intervalMax) * 1.25) * 2
	stoMs := float64(timeout) * 10
	return stoMs <= minStoMs
}

func ValidateConnParams(p ConnParams) error {
	switch {
	case p.ScanInterval < LEScanIntervalMin || p.ScanInterval > LEScanIntervalMax:
		return fmt.Errorf("invalid ScanInterval %v", p.ScanInterval)

	case p.ScanWindow < LEScanWindowMin || p.ScanWindow > LEScanWindowMax:
		return fmt.Errorf("invalid ScanWindow %v", p.ScanWindow)

	case p.ScanWindow > p.ScanInterval:
		return fmt.Errorf("ScanWindow %v > ScanInterval %v", p.ScanWindow, p.ScanInterval)

	case p.FilterPolicy != FilterPolicyAcceptAll && p.FilterPolicy != FilterPolicyAcceptWhitelist:
		return fmt.Errorf("invalid FilterPolicy %v", p.FilterPolicy)

	case p.OwnAddressType != AddrTypePublic && p.OwnAddressType != AddrTypeRandom:
		return fmt.Errorf("invalid OwnAddressType %v", p.OwnAddressType)

	case p.Peer.Type != AddrTypePublic && p.Peer.Type != AddrTypeRandom:
		return fmt.Errorf("invalid peer address type %v", p.Peer.Type)

	case p.ConnIntervalMax < ConnIntervalMin || p.ConnIntervalMax > ConnIntervalMax:
		return fmt.Errorf("invalid ConnIntervalMax %v", p.ConnIntervalMax)

	case p.ConnIntervalMin < ConnIntervalMin || p.ConnIntervalMin > ConnIntervalMax:
		return fmt.Errorf("invalid ConnIntervalMin %v", p.ConnIntervalMin)

	case p.ConnIntervalMin > p.ConnIntervalMax:
		return fmt.Errorf("ConnIntervalMin %v > ConnIntervalMax %v", p.ConnIntervalMin, p.ConnIntervalMax)

	case p.ConnLatency > ConnLatencyMax:
		return fmt.Errorf("invalid ConnLatency %v", p.ConnLatency)

	case p.SupervisionTimeout < SupervisionTimeoutMin || p.SupervisionTimeout > SupervisionTimeoutMax:
		return fmt.Errorf("invalid SupervisionTimeout %v", p.SupervisionTimeout)

	case supervisionTooSmall(p.ConnLatency, p.ConnIntervalMax, p.SupervisionTimeout):
		return fmt.Errorf("invalid SupervisionTimeout %v (too small)", p.SupervisionTimeout)

	case p.MinimumCELength > p.MaximumCELength:
		return fmt.Errorf("MinimumCELength %v > MaximumCELength %v", p.MinimumCELength, p.MaximumCELength)
	}

	return nil
}

func ValidateConnUpdateParams(p ConnUpdateParams) error {
	switch {
	case p.IntervalMin < ConnIntervalMin || p.IntervalMin > ConnIntervalMax:
		return fmt.Errorf("invalid IntervalMin %v", p.IntervalMin)

	case p.IntervalMax < ConnIntervalMin || p.IntervalMax > ConnIntervalMax:
		return fmt.Errorf("invalid IntervalMax %v", p.IntervalMax)

	case p.IntervalMin > p.IntervalMax:
		return fmt.Errorf("IntervalMin %v > IntervalMax %v", p.IntervalMin, p.IntervalMax)

	case p.Latency > ConnLatencyMax:
		return fmt.Errorf("invalid Latency %v", p.Latency)

	case p.SupervisionTimeout < SupervisionTimeoutMin || p.SupervisionTimeout > SupervisionTimeoutMax:
		return fmt.Errorf("invalid SupervisionTimeout %v", p.SupervisionTimeout)

	case supervisionTooSmall(p.Latency, p.IntervalMax, p.SupervisionTimeout):
		return fmt.Errorf("invalid SupervisionTimeout %v (too small)", p.SupervisionTimeout)
	}

	return nil
}
