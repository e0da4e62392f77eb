package harness

import (
	"fmt"

	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
)

// dispatch handles one raw packet from the stack. Malformed and unknown
// packets are dropped. gapRun follows every packet.
func (h *Harness) dispatch(b []byte) {
	defer h.gapRun()

	e, err := evt.Decode(b)
	if err != nil {
		h.log.Debugf("drop packet [% x]: %v", b, err)
		return
	}

	switch e := e.(type) {
	case evt.StackState:
		h.onStackState(e)
	case evt.ConnectionComplete:
		h.onConnectionComplete(e)
	case evt.DisconnectionComplete:
		h.onDisconnectionComplete(e)
	case evt.PasskeyInputRequest:
		h.onPasskeyInput(e)
	case evt.PasskeyDisplayRequest:
		h.onPasskeyDisplay(e)
	case evt.PasskeyDisplayCancel:
		h.onPasskeyDisplayCancel(e)
	case evt.AuthorizationRequest:
		h.onAuthorizationRequest(e)
	case evt.PairingComplete:
		h.onPairingComplete(e)
	case evt.AdvertisingReport:
		if err := h.printer.Advertisement(e); err != nil {
			h.log.Warnf("print advertisement: %v", err)
		}
	case evt.ServiceQueryResult:
		h.discovery.SetCurrent(e.Service)
		if err := h.printer.Service(e.Service); err != nil {
			h.log.Warnf("print service: %v", err)
		}
	case evt.CharacteristicQueryResult:
		if err := h.printer.Characteristic(e.Characteristic); err != nil {
			h.log.Warnf("print characteristic: %v", err)
		}
	case evt.QueryComplete:
		h.onQueryComplete(e)
	}
}

func (h *Harness) onStackState(e evt.StackState) {
	if e.State != evt.StateWorking {
		h.log.Debugf("stack state %v", e.State)
		return
	}

	if h.ready {
		h.log.Debugf("stack working again, security configuration kept")
		return
	}

	h.printf("SM Init completed\n")
	h.ready = true
	h.showUsage()
	h.pushSecurityConfig()
	if h.autoConnect {
		h.connectPending = true
	}
}

func (h *Harness) onConnectionComplete(e evt.ConnectionComplete) {
	if e.Status != 0 {
		h.printf("Connection to %v failed, status 0x%02x\n", e.Peer, e.Status)
		return
	}
	h.handle = e.Handle
	h.printf("Connection complete, handle 0x%04x\n", h.handle)
}

func (h *Harness) onDisconnectionComplete(e evt.DisconnectionComplete) {
	h.printf("Disconnected, handle 0x%04x, reason 0x%02x\n", e.Handle, e.Reason)
	if !h.clearOnDisconnect {
		return
	}

	h.handle = 0
	h.pairing.Reset()
	h.discovery.Reset()
	if h.state == stateAuthorization {
		h.pendingAuth = blecentral.Addr{}
		h.resumeInput()
	}
}

func (h *Harness) bondingPrefix() string {
	if !h.pairing.HasPeer {
		return "\nGAP Bonding (no peer)"
	}
	p := h.pairing.Peer
	return fmt.Sprintf("\nGAP Bonding %v (%d)", p, p.Type)
}

func (h *Harness) onPasskeyInput(e evt.PasskeyInputRequest) {
	h.pairing.SetPeer(e.Peer)
	h.pairing.Passkey.Start()
	h.printf("%v: Enter 6 digit passkey: '", h.bondingPrefix())
}

func (h *Harness) onPasskeyDisplay(e evt.PasskeyDisplayRequest) {
	h.pairing.SetPeer(e.Peer)
	h.printf("%v: Display Passkey '%06d'\n", h.bondingPrefix(), e.Passkey)
}

func (h *Harness) onPasskeyDisplayCancel(e evt.PasskeyDisplayCancel) {
	if !e.Peer.IsZero() {
		h.pairing.SetPeer(e.Peer)
	}
	h.printf("%v: Display cancel\n", h.bondingPrefix())
}

func (h *Harness) onAuthorizationRequest(e evt.AuthorizationRequest) {
	if h.authPolicy == blecentral.AuthAuto {
		h.config("grant authorization", h.stack.GrantAuthorization(e.Peer))
		return
	}

	if h.state != stateAuthorization {
		h.resume = h.state
	}
	h.pendingAuth = e.Peer
	h.state = stateAuthorization
	h.printf("\nGAP Authorization request from %v (%d), grant? (y/n) ", e.Peer, e.Peer.Type)
}

func (h *Harness) onPairingComplete(e evt.PairingComplete) {
	if e.Status == 0 {
		h.printf("\nGAP Bonding %v (%d): pairing complete\n", e.Peer, e.Peer.Type)
		return
	}
	h.printf("\nGAP Bonding %v (%d): pairing failed, reason 0x%02x (%v)\n",
		e.Peer, e.Peer.Type, e.Reason, evt.PairingFailedReason(e.Reason))
}

func (h *Harness) onQueryComplete(e evt.QueryComplete) {
	if e.Status != 0 {
		h.printf("\nGATT query failed, status 0x%02x, service %v\n", e.Status, h.discovery.Describe())
		return
	}
	h.printf("\nGATT query complete, service %v\n", h.discovery.Describe())
}
