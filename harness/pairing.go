package harness

import "github.com/rigado/blecentral"

// PasskeyDigits is the length of an SMP passkey.
const PasskeyDigits = 6

// PasskeyEntry accumulates typed passkey digits. It is active while
// digits remain.
type PasskeyEntry struct {
	DigitsRemaining int
	Value           uint32
}

// Start begins a new entry, discarding any partial one.
func (p *PasskeyEntry) Start() {
	p.DigitsRemaining = PasskeyDigits
	p.Value = 0
}

func (p *PasskeyEntry) Active() bool {
	return p.DigitsRemaining > 0
}

// Feed consumes one key. Non-digits are ignored and return accepted
// false. done is true when the last digit has been entered.
func (p *PasskeyEntry) Feed(c byte) (accepted, done bool) {
	if !p.Active() || c < '0' || c > '9' {
		return false, false
	}
	p.Value = p.Value*10 + uint32(c-'0')
	p.DigitsRemaining--
	return true, p.DigitsRemaining == 0
}

func (p *PasskeyEntry) Reset() {
	*p = PasskeyEntry{}
}

// PairingSession tracks the single peer the security manager is
// currently talking to.
type PairingSession struct {
	Peer    blecentral.Addr
	HasPeer bool
	Passkey PasskeyEntry
}

// SetPeer records the peer of the latest security request.
func (s *PairingSession) SetPeer(a blecentral.Addr) {
	s.Peer = a
	s.HasPeer = true
}

func (s *PairingSession) Reset() {
	*s = PairingSession{}
}
