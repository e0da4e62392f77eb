package bluez

import (
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
)

var charFlags = map[string]byte{
	"broadcast":                   blecentral.CharBroadcast,
	"read":                        blecentral.CharRead,
	"write-without-response":      blecentral.CharWriteNR,
	"write":                       blecentral.CharWrite,
	"notify":                      blecentral.CharNotify,
	"indicate":                    blecentral.CharIndicate,
	"authenticated-signed-writes": blecentral.CharSignedWrite,
	"extended-properties":         blecentral.CharExtended,
	"reliable-write":              blecentral.CharExtended,
	"writable-auxiliaries":        blecentral.CharExtended,
}

type gattService struct {
	blecentral.Service
	chars []blecentral.Characteristic
}

// DiscoverPrimaryServices reports the services and characteristics BlueZ
// resolved for the link. The command token is held for the whole walk.
func (s *Stack) DiscoverPrimaryServices(handle uint16) error {
	d := s.deviceByHandle(handle)
	if d == nil {
		return errors.Wrapf(errUnknownHandle, "0x%04x", handle)
	}
	if err := s.acquire(); err != nil {
		return err
	}
	wait := s.resolvedWait(d)
	go func() {
		defer s.release()
		status := uint8(statusSuccess)
		if err := s.discover(handle, d, wait); err != nil {
			s.logger.Warnf("discovery on 0x%04x: %v", handle, err)
			status = statusUnspecified
		}
		s.emit(evt.QueryComplete{ConnHandle: handle, Status: status})
	}()
	return nil
}

// resolvedWait returns nil when services are already resolved.
func (s *Stack) resolvedWait(d *device) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, _ := d.props.boolean("ServicesResolved"); r {
		return nil
	}
	w := make(chan struct{})
	d.resolved = append(d.resolved, w)
	return w
}

func (s *Stack) discover(handle uint16, d *device, wait <-chan struct{}) error {
	if wait != nil {
		select {
		case <-wait:
		case <-s.done:
			return ErrClosed
		case <-time.After(s.gattTimeout):
			return errors.New("services not resolved")
		}
	}

	objs, err := s.managedObjects()
	if err != nil {
		return err
	}
	for _, svc := range gattTree(d.path, objs) {
		s.emit(evt.ServiceQueryResult{ConnHandle: handle, Service: svc.Service})
		for _, c := range svc.chars {
			s.emit(evt.CharacteristicQueryResult{ConnHandle: handle, Characteristic: c})
		}
	}
	return nil
}

// gattTree builds the primary services under dev, ordered by handle. End
// handles are derived from the next declaration since BlueZ does not
// publish them.
func gattTree(dev dbus.ObjectPath, objs managedObjects) []*gattService {
	prefix := string(dev) + "/"
	byPath := map[dbus.ObjectPath]*gattService{}
	var svcs []*gattService

	for path, ifaces := range objs {
		p, ok := ifaces[ifaceGattSvc]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		pp := props(p)
		if primary, ok := pp.boolean("Primary"); ok && !primary {
			continue
		}
		start, ok := handleFromPath(path, "service")
		if !ok {
			continue
		}
		us, _ := pp.str("UUID")
		u, err := blecentral.ParseUUID(us)
		if err != nil {
			continue
		}
		svc := &gattService{Service: blecentral.Service{StartHandle: start, UUID: u}}
		byPath[path] = svc
		svcs = append(svcs, svc)
	}

	for path, ifaces := range objs {
		p, ok := ifaces[ifaceGattChar]
		if !ok {
			continue
		}
		pp := props(p)
		sv, ok := pp["Service"]
		if !ok {
			continue
		}
		sp, _ := sv.Value().(dbus.ObjectPath)
		svc, ok := byPath[sp]
		if !ok {
			continue
		}
		start, ok := handleFromPath(path, "char")
		if !ok {
			continue
		}
		us, _ := pp.str("UUID")
		u, err := blecentral.ParseUUID(us)
		if err != nil {
			continue
		}
		c := blecentral.Characteristic{StartHandle: start, ValueHandle: start + 1, UUID: u}
		if vh, ok := pp.uint16("Handle"); ok && vh != 0 {
			c.ValueHandle = vh
		}
		for _, f := range pp.strings("Flags") {
			c.Properties |= charFlags[f]
		}
		svc.chars = append(svc.chars, c)
	}

	sort.Slice(svcs, func(i, j int) bool { return svcs[i].StartHandle < svcs[j].StartHandle })
	for i, svc := range svcs {
		svc.EndHandle = 0xffff
		if i+1 < len(svcs) {
			svc.EndHandle = svcs[i+1].StartHandle - 1
		}
		cc := svc.chars
		sort.Slice(cc, func(i, j int) bool { return cc[i].StartHandle < cc[j].StartHandle })
		for j := range cc {
			cc[j].EndHandle = svc.EndHandle
			if j+1 < len(cc) {
				cc[j].EndHandle = cc[j+1].StartHandle - 1
			}
		}
	}
	return svcs
}
