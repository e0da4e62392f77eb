package harness

import "github.com/rigado/blecentral"

// DiscoverySession remembers the last service reported by a GATT query.
type DiscoverySession struct {
	Current *blecentral.Service
}

func (d *DiscoverySession) SetCurrent(s blecentral.Service) {
	d.Current = &s
}

// Describe names the current service, or "none".
func (d *DiscoverySession) Describe() string {
	if d.Current == nil {
		return "none"
	}
	return d.Current.UUID.String()
}

func (d *DiscoverySession) Reset() {
	d.Current = nil
}
