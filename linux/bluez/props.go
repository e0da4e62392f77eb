package bluez

import (
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/rigado/blecentral"
)

type props map[string]dbus.Variant

func (p props) str(k string) (string, bool) {
	v, ok := p[k]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func (p props) boolean(k string) (bool, bool) {
	v, ok := p[k]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}

func (p props) int16(k string) (int16, bool) {
	v, ok := p[k]
	if !ok {
		return 0, false
	}
	i, ok := v.Value().(int16)
	return i, ok
}

func (p props) uint16(k string) (uint16, bool) {
	v, ok := p[k]
	if !ok {
		return 0, false
	}
	i, ok := v.Value().(uint16)
	return i, ok
}

func (p props) strings(k string) []string {
	v, ok := p[k]
	if !ok {
		return nil
	}
	ss, _ := v.Value().([]string)
	return ss
}

// merge copies changed properties into p and drops invalidated ones.
func (p props) merge(changed map[string]dbus.Variant, invalidated []string) {
	for k, v := range changed {
		p[k] = v
	}
	for _, k := range invalidated {
		delete(p, k)
	}
}

func variantBytes(v dbus.Variant) []byte {
	b, _ := v.Value().([]byte)
	return b
}

// addrFromProps reads Address and AddressType, falling back to the object path.
func addrFromProps(path dbus.ObjectPath, p props) (blecentral.Addr, error) {
	s, ok := p.str("Address")
	if !ok {
		s = macFromPath(path)
	}
	t := blecentral.AddrTypePublic
	if at, ok := p.str("AddressType"); ok && at == "random" {
		t = blecentral.AddrTypeRandom
	}
	return blecentral.ParseAddr(s, t)
}

func macFromPath(p dbus.ObjectPath) string {
	s := string(p)
	// Expect .../dev_XX_XX_XX_XX_XX_XX
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}
	mac := s[idx+5:]
	if i := strings.IndexByte(mac, '/'); i >= 0 {
		mac = mac[:i]
	}
	return strings.Replace(mac, "_", ":", -1)
}

func devicePath(adapter dbus.ObjectPath, a blecentral.Addr) dbus.ObjectPath {
	return dbus.ObjectPath(string(adapter) + "/dev_" + strings.Replace(a.String(), ":", "_", -1))
}

// handleFromPath parses the attribute handle BlueZ encodes in the last
// element of GATT object paths, e.g. .../service000a/char000b.
func handleFromPath(p dbus.ObjectPath, prefix string) (uint16, bool) {
	s := string(p)
	idx := strings.LastIndex(s, "/")
	if idx < 0 || !strings.HasPrefix(s[idx+1:], prefix) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[idx+1+len(prefix):], 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
