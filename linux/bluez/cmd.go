package bluez

import (
	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
)

// SetIOCapability re-registers the agent with the matching capability.
func (s *Stack) SetIOCapability(c blecentral.IOCapability) error {
	if c > blecentral.IOCapKeyboardDisplay {
		return errors.Errorf("invalid io capability %v", c)
	}
	s.unregisterAgent()
	return s.registerAgent(c)
}

// SetAuthenticationRequirements records the requested bits. BlueZ derives
// its own from the agent capability and the pairable state.
func (s *Stack) SetAuthenticationRequirements(a blecentral.AuthReq) error {
	s.mu.Lock()
	s.authReq = a
	s.mu.Unlock()
	s.logger.Debugf("auth req 0x%02x", uint8(a))
	return nil
}

func (s *Stack) SetEncryptionKeySizeRange(min, max int) error {
	if min < blecentral.MinEncryptionKeySize || max > blecentral.MaxEncryptionKeySize || min > max {
		return errors.Errorf("invalid key size range [%v..%v]", min, max)
	}
	s.mu.Lock()
	s.minKey, s.maxKey = min, max
	s.mu.Unlock()
	s.logger.Debugf("key size range [%v..%v]", min, max)
	return nil
}

func (s *Stack) RegisterOOBDataHandler(h blecentral.OOBDataHandler) error {
	s.mu.Lock()
	s.oob = h
	s.mu.Unlock()
	s.logger.Debugf("oob handler registered: %v", h != nil)
	return nil
}

func (s *Stack) SetPrivacy(enable bool) error {
	s.mu.Lock()
	s.privacy = enable
	s.mu.Unlock()
	s.logger.Debugf("privacy %v", enable)
	return nil
}

func (s *Stack) GrantAuthorization(peer blecentral.Addr) error {
	s.logger.Debugf("grant authorization %v", peer)
	return s.agent.answer(true)
}

func (s *Stack) DeclineAuthorization(peer blecentral.Addr) error {
	s.logger.Debugf("decline authorization %v", peer)
	return s.agent.answer(false)
}

func (s *Stack) SubmitPasskey(peer blecentral.Addr, passkey uint32) error {
	if passkey > 999999 {
		return errors.Errorf("invalid passkey %v", passkey)
	}
	return s.agent.submitPasskey(passkey)
}

// CreateConnection connects to p.Peer. Scan and interval parameters are
// kept for the connection-complete report; BlueZ picks its own on air.
func (s *Stack) CreateConnection(p blecentral.ConnParams) error {
	if err := blecentral.ValidateConnParams(p); err != nil {
		return err
	}
	if err := s.acquire(); err != nil {
		return err
	}
	s.mu.Lock()
	s.connParams = p
	s.mu.Unlock()

	go func() {
		defer s.release()
		d, err := s.connect(p.Peer)
		if err != nil {
			s.logger.Warnf("connect %v: %v", p.Peer, err)
			s.emit(evt.ConnectionComplete{Status: statusConnFailedToEstablish, Peer: p.Peer})
			return
		}
		s.connected(d, statusSuccess)
	}()
	return nil
}

func (s *Stack) connect(peer blecentral.Addr) (*device, error) {
	if d := s.deviceByAddr(peer); d != nil {
		err := s.conn.Object(bluezService, d.path).Call(ifaceDevice+".Connect", 0).Err
		return d, errors.Wrap(err, "Device1.Connect")
	}

	// Unknown to BlueZ: ask the adapter to create and connect it.
	at := "public"
	if peer.Type == blecentral.AddrTypeRandom {
		at = "random"
	}
	args := map[string]interface{}{"Address": peer.String(), "AddressType": at}
	var path dbus.ObjectPath
	err := s.conn.Object(bluezService, s.adapter).Call(ifaceAdapter+".ConnectDevice", 0, args).Store(&path)
	switch {
	case err == nil:
	case errorName(err) == errAlreadyExists:
		// the device object exists but its announcement never reached us
		path = devicePath(s.adapter, peer)
		if err := s.conn.Object(bluezService, path).Call(ifaceDevice+".Connect", 0).Err; err != nil {
			return nil, errors.Wrap(err, "Device1.Connect")
		}
	default:
		return nil, errors.Wrap(err, "Adapter1.ConnectDevice")
	}

	s.mu.Lock()
	d, ok := s.devices[path]
	if !ok {
		d = &device{path: path, addr: peer, props: props{}}
		s.devices[path] = d
	}
	s.mu.Unlock()
	return d, nil
}

const errAlreadyExists = "org.bluez.Error.AlreadyExists"

// errorName returns the D-Bus error name carried by err, if any.
func errorName(err error) string {
	switch e := errors.Cause(err).(type) {
	case dbus.Error:
		return e.Name
	case *dbus.Error:
		return e.Name
	}
	return ""
}

// UpdateConnectionParams validates and records the request. Connection
// parameter updates are not reachable over D-Bus.
func (s *Stack) UpdateConnectionParams(handle uint16, p blecentral.ConnUpdateParams) error {
	if err := blecentral.ValidateConnUpdateParams(p); err != nil {
		return err
	}
	if s.deviceByHandle(handle) == nil {
		return errors.Wrapf(errUnknownHandle, "0x%04x", handle)
	}
	s.mu.Lock()
	s.updates[handle] = p
	s.mu.Unlock()
	s.logger.Debugf("conn update 0x%04x: %+v", handle, p)
	return nil
}

func (s *Stack) Disconnect(handle uint16, reason uint8) error {
	d := s.deviceByHandle(handle)
	if d == nil {
		return errors.Wrapf(errUnknownHandle, "0x%04x", handle)
	}
	if err := s.acquire(); err != nil {
		return err
	}
	s.mu.Lock()
	d.localDisconnect = true
	s.mu.Unlock()
	s.logger.Debugf("disconnect 0x%04x reason 0x%02x", handle, reason)

	go func() {
		defer s.release()
		if err := s.conn.Object(bluezService, d.path).Call(ifaceDevice+".Disconnect", 0).Err; err != nil {
			s.logger.Warnf("disconnect 0x%04x: %v", handle, err)
			s.mu.Lock()
			d.localDisconnect = false
			s.mu.Unlock()
			return
		}
		s.disconnected(d)
	}()
	return nil
}
