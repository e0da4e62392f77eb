package bluez

import (
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
	"github.com/rigado/blecentral/parser"
)

// advInd is the ADV_IND PDU type. BlueZ merges advertisement and scan
// response, so every rebuilt report is tagged with it.
const advInd = 0x00

type device struct {
	path  dbus.ObjectPath
	addr  blecentral.Addr
	props props

	handle          uint16
	localDisconnect bool
	resolved        []chan struct{}
}

func (d *device) connected() bool {
	return d.handle != 0
}

// deviceAdded tracks a device of our adapter. Devices arriving through
// InterfacesAdded with an RSSI were just seen advertising.
func (s *Stack) deviceAdded(path dbus.ObjectPath, p map[string]dbus.Variant, live bool) {
	if !strings.HasPrefix(string(path), string(s.adapter)+"/") {
		return
	}
	a, err := addrFromProps(path, p)
	if err != nil {
		s.logger.Debugf("device %v: %v", path, err)
		return
	}

	s.mu.Lock()
	d, ok := s.devices[path]
	if !ok {
		d = &device{path: path, addr: a, props: props{}}
		s.devices[path] = d
	}
	d.props.merge(p, nil)
	s.mu.Unlock()

	if live {
		s.advertise(d)
	}
}

func (s *Stack) deviceRemoved(path dbus.ObjectPath) {
	s.mu.Lock()
	d, ok := s.devices[path]
	if ok {
		delete(s.devices, path)
	}
	up := ok && d.connected()
	s.mu.Unlock()

	if up {
		s.disconnected(d)
	}
}

func (s *Stack) deviceChanged(path dbus.ObjectPath, changed map[string]dbus.Variant, invalidated []string) {
	s.mu.Lock()
	d, ok := s.devices[path]
	if !ok {
		s.mu.Unlock()
		return
	}
	d.props.merge(changed, invalidated)
	s.mu.Unlock()

	if v, ok := changed["Connected"]; ok {
		if up, _ := v.Value().(bool); up {
			s.connected(d, statusSuccess)
		} else {
			s.disconnected(d)
		}
	}
	if v, ok := changed["ServicesResolved"]; ok {
		if r, _ := v.Value().(bool); r {
			s.servicesResolved(d)
		}
	}
	if v, ok := changed["Paired"]; ok {
		if paired, _ := v.Value().(bool); paired {
			s.emit(evt.PairingComplete{Peer: d.addr, Status: statusSuccess})
		}
	}
	_, rssi := changed["RSSI"]
	_, md := changed["ManufacturerData"]
	_, sd := changed["ServiceData"]
	if rssi || md || sd {
		s.advertise(d)
	}
}

// addrOf maps a device object path to its address.
func (s *Stack) addrOf(path dbus.ObjectPath) blecentral.Addr {
	s.mu.Lock()
	d, ok := s.devices[path]
	s.mu.Unlock()
	if ok {
		return d.addr
	}
	a, _ := blecentral.ParseAddr(macFromPath(path), blecentral.AddrTypePublic)
	return a
}

func (s *Stack) deviceByAddr(a blecentral.Addr) *device {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.addr.MAC == a.MAC {
			return d
		}
	}
	return nil
}

func (s *Stack) deviceByHandle(h uint16) *device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[h]
}

func (s *Stack) advertise(d *device) {
	s.mu.Lock()
	rssi, ok := d.props.int16("RSSI")
	data, err := advData(d.props)
	addr := d.addr
	s.mu.Unlock()

	if !ok {
		return
	}
	if err != nil {
		s.logger.Debugf("adv %v truncated: %v", addr, err)
	}
	s.emit(evt.AdvertisingReport{EventType: advInd, Addr: addr, RSSI: int8(rssi), Data: data})
}

// advData rebuilds an advertising payload from the device properties.
func advData(p props) ([]byte, error) {
	var b parser.Builder
	if v, ok := p["AdvertisingFlags"]; ok {
		if f := variantBytes(v); len(f) > 0 {
			b.Flags(f[0])
		}
	}
	if n, ok := p.str("Name"); ok {
		b.Name(n)
	}
	if tx, ok := p.int16("TxPower"); ok {
		b.TxPower(int8(tx))
	}

	var uu []blecentral.UUID
	for _, s := range p.strings("UUIDs") {
		if u, err := blecentral.ParseUUID(s); err == nil {
			uu = append(uu, u)
		}
	}
	if len(uu) > 0 {
		b.Services(uu)
	}

	if v, ok := p["ServiceData"]; ok {
		sd, _ := v.Value().(map[string]dbus.Variant)
		keys := make([]string, 0, len(sd))
		for k := range sd {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if u, err := blecentral.ParseUUID(k); err == nil {
				b.ServiceData(u, variantBytes(sd[k]))
			}
		}
	}

	if v, ok := p["ManufacturerData"]; ok {
		md, _ := v.Value().(map[uint16]dbus.Variant)
		ids := make([]int, 0, len(md))
		for id := range md {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		for _, id := range ids {
			b.ManufacturerData(uint16(id), variantBytes(md[uint16(id)]))
		}
	}
	return b.Bytes(), b.Err()
}

// connected allocates a handle the first time a link to d comes up and
// reports it. Both the Connect reply and the Connected property end here.
func (s *Stack) connected(d *device, status uint8) {
	s.mu.Lock()
	if d.connected() {
		s.mu.Unlock()
		return
	}
	h := s.nextHandle
	for s.handles[h] != nil || h == 0 {
		h++
	}
	s.nextHandle = h + 1
	d.handle = h
	d.localDisconnect = false
	s.handles[h] = d
	cp := s.connParams
	s.mu.Unlock()

	s.logger.Debugf("connected %v handle 0x%04x", d.addr, h)
	s.emit(evt.ConnectionComplete{
		Status:             status,
		Handle:             h,
		Peer:               d.addr,
		Interval:           cp.ConnIntervalMax,
		Latency:            cp.ConnLatency,
		SupervisionTimeout: cp.SupervisionTimeout,
	})
}

func (s *Stack) disconnected(d *device) {
	s.mu.Lock()
	if !d.connected() {
		s.mu.Unlock()
		return
	}
	h := d.handle
	reason := uint8(blecentral.DisconnectRemoteUserTerminated)
	if d.localDisconnect {
		reason = reasonLocalHost
	}
	delete(s.handles, h)
	delete(s.updates, h)
	d.handle = 0
	d.localDisconnect = false
	s.mu.Unlock()

	s.logger.Debugf("disconnected %v handle 0x%04x reason 0x%02x", d.addr, h, reason)
	s.emit(evt.DisconnectionComplete{Status: statusSuccess, Handle: h, Reason: reason})
}

func (s *Stack) servicesResolved(d *device) {
	s.mu.Lock()
	ww := d.resolved
	d.resolved = nil
	s.mu.Unlock()
	for _, w := range ww {
		close(w)
	}
}
