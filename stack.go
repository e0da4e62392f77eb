package blecentral

import "fmt"

// IOCapability is the SMP IO capability advertised during pairing.
type IOCapability uint8

const (
	IOCapDisplayOnly     IOCapability = 0x00
	IOCapDisplayYesNo    IOCapability = 0x01
	IOCapKeyboardOnly    IOCapability = 0x02
	IOCapNoInputNoOutput IOCapability = 0x03
	IOCapKeyboardDisplay IOCapability = 0x04
)

var ioCapNames = map[IOCapability]string{
	IOCapDisplayOnly:     "DisplayOnly",
	IOCapDisplayYesNo:    "DisplayYesNo",
	IOCapKeyboardOnly:    "KeyboardOnly",
	IOCapNoInputNoOutput: "NoInputNoOutput",
	IOCapKeyboardDisplay: "KeyboardDisplay",
}

func (c IOCapability) String() string {
	if s, ok := ioCapNames[c]; ok {
		return s
	}
	return fmt.Sprintf("IOCapability(%d)", uint8(c))
}

// ParseIOCapability maps a name such as "KeyboardDisplay" (case
// insensitive, dashes allowed) to its value.
func ParseIOCapability(s string) (IOCapability, error) {
	n := normalizeName(s)
	for c, name := range ioCapNames {
		if normalizeName(name) == n {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid io capability %q", s)
}

func normalizeName(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '-' || c == '_' || c == ' ':
			continue
		case c >= 'A' && c <= 'Z':
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// AuthReq is the SMP authentication requirements bit field.
type AuthReq uint8

const (
	AuthReqBonding AuthReq = 0x01
	AuthReqMITM    AuthReq = 0x04
)

// DisconnectRemoteUserTerminated is the HCI reason used by the disconnect command.
const DisconnectRemoteUserTerminated = 0x13

// OOBDataHandler is asked for out-of-band data for a peer. It returns
// false, leaving buf untouched, when none is available; otherwise it
// copies 16 bytes into buf.
type OOBDataHandler func(t AddrType, a [6]byte, buf []byte) bool

// Stack is the Bluetooth host the harness drives. Events delivers raw
// packets of the form [code][param-len][params...].
type Stack interface {
	Events() <-chan []byte

	// CanSendCommand reports whether the transport accepts a command now.
	CanSendCommand() bool

	SetIOCapability(IOCapability) error
	SetAuthenticationRequirements(AuthReq) error
	SetEncryptionKeySizeRange(min, max int) error
	RegisterOOBDataHandler(OOBDataHandler) error
	SetPrivacy(enable bool) error

	GrantAuthorization(peer Addr) error
	DeclineAuthorization(peer Addr) error
	SubmitPasskey(peer Addr, passkey uint32) error

	CreateConnection(p ConnParams) error
	UpdateConnectionParams(handle uint16, p ConnUpdateParams) error
	Disconnect(handle uint16, reason uint8) error
	DiscoverPrimaryServices(handle uint16) error
}
