package blecentral

import "fmt"

const (
	MinEncryptionKeySize = 7
	MaxEncryptionKeySize = 16
)

// DefaultOOBData is the out-of-band key offered when OOB is enabled.
var DefaultOOBData = [16]byte{'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', '0', '1', '2', '3', '4', '5'}

// SecurityPolicy is the local pairing configuration.
type SecurityPolicy struct {
	IOCapability IOCapability
	MITM         bool
	Bondable     bool
	OOBAvailable bool
	OOBData      [16]byte
	MinKeySize   int
}

// DefaultSecurityPolicy is the configuration pushed at start-up.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		IOCapability: IOCapNoInputNoOutput,
		OOBData:      DefaultOOBData,
		MinKeySize:   MinEncryptionKeySize,
	}
}

// AuthReq derives the authentication requirements from the MITM and
// bondable flags.
func (p SecurityPolicy) AuthReq() AuthReq {
	var a AuthReq
	if p.MITM {
		a |= AuthReqMITM
	}
	if p.Bondable {
		a |= AuthReqBonding
	}
	return a
}

// OOB implements OOBDataHandler over the policy's current settings.
func (p *SecurityPolicy) OOB(t AddrType, a [6]byte, buf []byte) bool {
	if !p.OOBAvailable || len(buf) < len(p.OOBData) {
		return false
	}
	copy(buf, p.OOBData[:])
	return true
}

func (p SecurityPolicy) Validate() error {
	if p.MinKeySize < MinEncryptionKeySize || p.MinKeySize > MaxEncryptionKeySize {
		return fmt.Errorf("invalid min key size %v", p.MinKeySize)
	}
	if _, ok := ioCapNames[p.IOCapability]; !ok {
		return fmt.Errorf("invalid io capability %v", p.IOCapability)
	}
	return nil
}

// AuthPolicy decides how authorization requests are answered.
type AuthPolicy int

const (
	// AuthAuto grants every request immediately.
	AuthAuto AuthPolicy = iota
	// AuthPrompt asks at the console.
	AuthPrompt
)

func (a AuthPolicy) String() string {
	if a == AuthPrompt {
		return "prompt"
	}
	return "auto"
}

func ParseAuthPolicy(s string) (AuthPolicy, error) {
	switch normalizeName(s) {
	case "", "auto":
		return AuthAuto, nil
	case "prompt":
		return AuthPrompt, nil
	}
	return AuthAuto, fmt.Errorf("invalid authorization policy %q", s)
}
