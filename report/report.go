// Package report renders discovery results and advertisements.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
	"github.com/rigado/blecentral/parser"
)

// Format selects how a Printer renders records.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("invalid report format %q", s)
}

// HexDump renders b as space separated upper case hex bytes.
func HexDump(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

func Service(s blecentral.Service) string {
	return fmt.Sprintf("    * service: [0x%04x-0x%04x], uuid %v", s.StartHandle, s.EndHandle, s.UUID)
}

func Characteristic(c blecentral.Characteristic) string {
	return fmt.Sprintf("    * characteristic: [0x%04x-0x%04x-0x%04x], properties 0x%02x, uuid %v",
		c.StartHandle, c.ValueHandle, c.EndHandle, c.Properties, c.UUID)
}

func Advertisement(r evt.AdvertisingReport) string {
	return fmt.Sprintf("    * adv. event: evt-type %d, addr-type %d, addr %v, rssi %d, length adv %d, data: %v",
		r.EventType, r.Addr.Type, r.Addr, r.RSSI, len(r.Data), HexDump(r.Data))
}

// Fields summarises decoded AD structures on one line. It returns "" when
// there is nothing to show.
func Fields(f *parser.Fields) string {
	if f == nil || f.Empty() {
		return ""
	}

	var parts []string
	if f.Name != "" {
		parts = append(parts, fmt.Sprintf("name %q", f.Name))
	}
	if len(f.Services) != 0 {
		parts = append(parts, fmt.Sprintf("services %v", f.Services))
	}
	if len(f.ServiceData) != 0 {
		sd := make([]string, 0, len(f.ServiceData))
		for u, d := range f.ServiceData {
			sd = append(sd, fmt.Sprintf("%v=%x", u, d))
		}
		sort.Strings(sd)
		parts = append(parts, fmt.Sprintf("service data %v", sd))
	}
	if len(f.MFG) != 0 {
		parts = append(parts, fmt.Sprintf("mfg %x", f.MFG))
	}
	if f.TxPower != nil {
		parts = append(parts, fmt.Sprintf("tx power %d", *f.TxPower))
	}
	if len(f.Flags) != 0 {
		parts = append(parts, fmt.Sprintf("flags 0x%02x", f.Flags[0]))
	}
	return "      " + strings.Join(parts, ", ")
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type advRecord struct {
	Type      string         `json:"type"`
	EventType uint8          `json:"eventType"`
	AddrType  uint8          `json:"addrType"`
	Addr      string         `json:"addr"`
	RSSI      int8           `json:"rssi"`
	Data      string         `json:"data"`
	Fields    *parser.Fields `json:"fields,omitempty"`
}

type serviceRecord struct {
	Type string `json:"type"`
	blecentral.Service
}

type characteristicRecord struct {
	Type string `json:"type"`
	blecentral.Characteristic
	Props string `json:"props"`
}

// Printer writes records in the selected format, one per line.
type Printer struct {
	w      io.Writer
	format Format
}

func NewPrinter(w io.Writer, f Format) *Printer {
	return &Printer{w: w, format: f}
}

func (p *Printer) Format() Format {
	return p.format
}

func (p *Printer) writeJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode record")
	}
	_, err = fmt.Fprintf(p.w, "%s\n", b)
	return err
}

func (p *Printer) Service(s blecentral.Service) error {
	if p.format == FormatJSON {
		return p.writeJSON(serviceRecord{Type: "service", Service: s})
	}
	_, err := fmt.Fprintln(p.w, Service(s))
	return err
}

func (p *Printer) Characteristic(c blecentral.Characteristic) error {
	if p.format == FormatJSON {
		return p.writeJSON(characteristicRecord{
			Type:           "characteristic",
			Characteristic: c,
			Props:          blecentral.PropString(c.Properties),
		})
	}
	_, err := fmt.Fprintln(p.w, Characteristic(c))
	return err
}

// Advertisement prints the report and, when the payload decodes, its AD fields.
func (p *Printer) Advertisement(r evt.AdvertisingReport) error {
	var f *parser.Fields
	if len(r.Data) != 0 {
		if pf, err := parser.Parse(r.Data); err == nil {
			f = pf
		}
	}

	if p.format == FormatJSON {
		rec := advRecord{
			Type:      "adv",
			EventType: r.EventType,
			AddrType:  uint8(r.Addr.Type),
			Addr:      r.Addr.String(),
			RSSI:      r.RSSI,
			Data:      fmt.Sprintf("%x", r.Data),
		}
		if f != nil && !f.Empty() {
			rec.Fields = f
		}
		return p.writeJSON(rec)
	}

	if _, err := fmt.Fprintln(p.w, Advertisement(r)); err != nil {
		return err
	}
	if line := Fields(f); line != "" {
		_, err := fmt.Fprintln(p.w, line)
		return err
	}
	return nil
}
