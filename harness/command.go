package harness

import (
	"strconv"
	"strings"

	"github.com/rigado/blecentral"
)

const (
	keyBackspace = 0x08
	keyDelete    = 0x7f
)

// numericPrompt collects one line of input for the v and s commands.
type numericPrompt struct {
	key   byte
	label string
	line  []byte
}

// handleKey processes one console byte. Passkey entry takes precedence
// over any other input state.
func (h *Harness) handleKey(c byte) {
	if h.pairing.Passkey.Active() {
		h.passkeyKey(c)
		return
	}

	switch h.state {
	case stateNumeric:
		h.numericKey(c)
	case stateAuthorization:
		h.authorizationKey(c)
	default:
		h.command(c)
	}
}

func (h *Harness) passkeyKey(c byte) {
	accepted, done := h.pairing.Passkey.Feed(c)
	if !accepted {
		return
	}
	h.printf("%c", c)
	if !done {
		return
	}

	v := h.pairing.Passkey.Value
	h.printf("\nSending Passkey '%06d'\n", v)
	h.config("submit passkey", h.stack.SubmitPasskey(h.pairing.Peer, v))
}

func (h *Harness) authorizationKey(c byte) {
	switch c {
	case 'y', 'Y':
		h.printf("%c\n", c)
		h.config("grant authorization", h.stack.GrantAuthorization(h.pendingAuth))
	case 'n', 'N':
		h.printf("%c\n", c)
		h.config("decline authorization", h.stack.DeclineAuthorization(h.pendingAuth))
	default:
		return
	}
	h.pendingAuth = blecentral.Addr{}
	h.resumeInput()
}

// resumeInput leaves the authorization question and returns to whatever
// was being typed when it arrived.
func (h *Harness) resumeInput() {
	h.state, h.resume = h.resume, stateNormal
	if h.state == stateNumeric {
		h.printf("%v: %s", h.prompt.label, h.prompt.line)
	}
}

func (h *Harness) startPrompt(key byte, label string) {
	h.state = stateNumeric
	h.prompt = numericPrompt{key: key, label: label}
	h.printf("%v: ", label)
}

func (h *Harness) numericKey(c byte) {
	switch {
	case c == '\r' || c == '\n':
		h.printf("\n")
		h.finishPrompt(strings.TrimSpace(string(h.prompt.line)))
		h.state = stateNormal
		h.prompt = numericPrompt{}
		h.showUsage()

	case c == keyBackspace || c == keyDelete:
		if n := len(h.prompt.line); n > 0 {
			h.prompt.line = h.prompt.line[:n-1]
			h.printf("\b \b")
		}

	case c >= 0x20 && c < 0x7f:
		h.prompt.line = append(h.prompt.line, c)
		h.printf("%c", c)
	}
}

func (h *Harness) finishPrompt(s string) {
	switch h.prompt.key {
	case 'v':
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
		if err != nil {
			h.printf("Invalid value handle %q, keeping 0x%x\n", s, h.valueHandle)
			return
		}
		h.valueHandle = uint16(v)

	case 's':
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			h.printf("Invalid attribute size %q, keeping %d\n", s, h.attributeSize)
			return
		}
		h.attributeSize = uint16(v)
	}
}

func (h *Harness) setIOCapability(c blecentral.IOCapability) {
	h.policy.IOCapability = c
	h.config("set io capability", h.stack.SetIOCapability(c))
	h.showUsage()
}

// command handles a key in the normal input state.
func (h *Harness) command(c byte) {
	switch c {
	case 'p', 'P':
		h.privacy = false
		h.config("set privacy", h.stack.SetPrivacy(false))
		h.showUsage()

	case 'z':
		h.sendCommand("connection parameter update", func() error {
			h.printf("Sending connection parameter update request\n")
			return h.stack.UpdateConnectionParams(h.handle, blecentral.DefaultConnUpdateParams)
		})

	case 't':
		h.sendCommand("disconnect", func() error {
			h.printf("Terminating connection\n")
			return h.stack.Disconnect(h.handle, blecentral.DisconnectRemoteUserTerminated)
		})

	case 'j':
		h.sendCommand("create connection", func() error {
			h.createConnection()
			return nil
		})

	case 'd':
		h.sendCommand("discover primary services", func() error {
			h.printf("Discover all primary services\n")
			return h.stack.DiscoverPrimaryServices(h.handle)
		})

	case 'v':
		h.startPrompt(c, "Value Handle")

	case 's':
		h.startPrompt(c, "Attribute Size")

	case 'e':
		h.setIOCapability(blecentral.IOCapDisplayOnly)
	case 'f':
		h.setIOCapability(blecentral.IOCapDisplayYesNo)
	case 'g':
		h.setIOCapability(blecentral.IOCapNoInputNoOutput)
	case 'h':
		h.setIOCapability(blecentral.IOCapKeyboardOnly)
	case 'i':
		h.setIOCapability(blecentral.IOCapKeyboardDisplay)

	case 'o':
		h.policy.OOBAvailable = false
		h.showUsage()
	case 'O':
		h.policy.OOBAvailable = true
		h.showUsage()

	case 'm':
		h.policy.MITM = false
		h.pushAuthReq()
		h.showUsage()
	case 'M':
		h.policy.MITM = true
		h.pushAuthReq()
		h.showUsage()

	case 'b':
		h.policy.Bondable = false
		h.pushAuthReq()
		h.showUsage()
	case 'B':
		h.policy.Bondable = true
		h.pushAuthReq()
		h.showUsage()

	case 'k':
		h.policy.MinKeySize = blecentral.MinEncryptionKeySize
		h.pushKeySizeRange()
		h.showUsage()
	case 'K':
		h.policy.MinKeySize = blecentral.MaxEncryptionKeySize
		h.pushKeySizeRange()
		h.showUsage()

	default:
		h.showUsage()
	}
}
