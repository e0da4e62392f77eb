package bluez

import (
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
)

var (
	errRejected = &dbus.Error{Name: "org.bluez.Error.Rejected", Body: []interface{}{"rejected"}}
	errCanceled = &dbus.Error{Name: "org.bluez.Error.Canceled", Body: []interface{}{"canceled"}}

	errNoRequest = errors.New("no agent request pending")
)

// agent is exported as org.bluez.Agent1. BlueZ calls it from the bus
// dispatch goroutine; requests that need the user block until the harness
// answers through the Stack, the request times out or BlueZ cancels it.
type agent struct {
	s *Stack

	mu         sync.Mutex
	passkeys   chan uint32
	grants     chan bool
	cancel     chan struct{}
	pending    bool
	displaying *blecentral.Addr
}

func newAgent(s *Stack) *agent {
	return &agent{
		s:        s,
		passkeys: make(chan uint32, 1),
		grants:   make(chan bool, 1),
		cancel:   make(chan struct{}),
	}
}

func (a *agent) Release() *dbus.Error {
	a.s.logger.Debug("agent released")
	return nil
}

// RequestPinCode is for BR/EDR legacy pairing, which an LE central never does.
func (a *agent) RequestPinCode(device dbus.ObjectPath) (string, *dbus.Error) {
	a.s.logger.Warnf("pin code requested by %v, rejecting", device)
	return "", errRejected
}

func (a *agent) DisplayPinCode(device dbus.ObjectPath, pincode string) *dbus.Error {
	a.s.logger.Infof("pin code for %v: %v", device, pincode)
	return nil
}

func (a *agent) RequestPasskey(device dbus.ObjectPath) (uint32, *dbus.Error) {
	peer := a.s.addrOf(device)
	cancel := a.begin()
	defer a.end()

	a.s.emit(evt.PasskeyInputRequest{Peer: peer})
	select {
	case pk := <-a.passkeys:
		return pk, nil
	case <-cancel:
		return 0, errCanceled
	case <-a.s.done:
		return 0, errCanceled
	case <-time.After(a.s.agentTimeout):
		a.s.logger.Warnf("passkey request from %v timed out", peer)
		return 0, errCanceled
	}
}

// DisplayPasskey is called on every keypress on the remote side; only the
// first call, before any digit is entered, is reported.
func (a *agent) DisplayPasskey(device dbus.ObjectPath, passkey uint32, entered uint16) *dbus.Error {
	if entered != 0 {
		return nil
	}
	a.display(device, passkey)
	return nil
}

// RequestConfirmation is numeric comparison. The value is shown and accepted.
func (a *agent) RequestConfirmation(device dbus.ObjectPath, passkey uint32) *dbus.Error {
	a.display(device, passkey)
	return nil
}

func (a *agent) RequestAuthorization(device dbus.ObjectPath) *dbus.Error {
	return a.authorize(device)
}

func (a *agent) AuthorizeService(device dbus.ObjectPath, uuid string) *dbus.Error {
	a.s.logger.Debugf("authorize service %v for %v", uuid, device)
	return a.authorize(device)
}

func (a *agent) Cancel() *dbus.Error {
	a.mu.Lock()
	peer := a.displaying
	a.displaying = nil
	if a.pending {
		close(a.cancel)
		a.cancel = make(chan struct{})
	}
	a.mu.Unlock()

	if peer != nil {
		a.s.emit(evt.PasskeyDisplayCancel{Peer: *peer})
	}
	return nil
}

func (a *agent) display(device dbus.ObjectPath, passkey uint32) {
	peer := a.s.addrOf(device)
	a.mu.Lock()
	a.displaying = &peer
	a.mu.Unlock()
	a.s.emit(evt.PasskeyDisplayRequest{Peer: peer, Passkey: passkey})
}

func (a *agent) authorize(device dbus.ObjectPath) *dbus.Error {
	peer := a.s.addrOf(device)
	cancel := a.begin()
	defer a.end()

	a.s.emit(evt.AuthorizationRequest{Peer: peer})
	select {
	case ok := <-a.grants:
		if !ok {
			return errRejected
		}
		return nil
	case <-cancel:
		return errCanceled
	case <-a.s.done:
		return errCanceled
	case <-time.After(a.s.agentTimeout):
		a.s.logger.Warnf("authorization request from %v timed out", peer)
		return errRejected
	}
}

// begin marks a request pending and drains stale answers.
func (a *agent) begin() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pending = true
	select {
	case <-a.passkeys:
	default:
	}
	select {
	case <-a.grants:
	default:
	}
	return a.cancel
}

func (a *agent) end() {
	a.mu.Lock()
	a.pending = false
	a.mu.Unlock()
}

func (a *agent) submitPasskey(pk uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pending {
		return errNoRequest
	}
	select {
	case a.passkeys <- pk:
	default:
	}
	return nil
}

func (a *agent) answer(grant bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.pending {
		return errNoRequest
	}
	select {
	case a.grants <- grant:
	default:
	}
	return nil
}

func (s *Stack) registerAgent(c blecentral.IOCapability) error {
	mgr := s.conn.Object(bluezService, bluezRoot)
	if err := mgr.Call(ifaceAgentMgr+".RegisterAgent", 0, agentPath, c.String()).Err; err != nil {
		return errors.Wrapf(err, "register agent %v", c)
	}
	if err := mgr.Call(ifaceAgentMgr+".RequestDefaultAgent", 0, agentPath).Err; err != nil {
		return errors.Wrap(err, "default agent")
	}
	return nil
}

func (s *Stack) unregisterAgent() {
	err := s.conn.Object(bluezService, bluezRoot).Call(ifaceAgentMgr+".UnregisterAgent", 0, agentPath).Err
	if err != nil {
		s.logger.Debugf("unregister agent: %v", err)
	}
}
