package harness

import (
	"fmt"
	"strings"

	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/report"
)

const clearScreen = "\x1b[1;1H\x1b[2J"

var ioCapLabels = map[blecentral.IOCapability]string{
	blecentral.IOCapDisplayOnly:     "IO_CAPABILITY_DISPLAY_ONLY",
	blecentral.IOCapDisplayYesNo:    "IO_CAPABILITY_DISPLAY_YES_NO",
	blecentral.IOCapNoInputNoOutput: "IO_CAPABILITY_NO_INPUT_NO_OUTPUT",
	blecentral.IOCapKeyboardOnly:    "IO_CAPABILITY_KEYBOARD_ONLY",
	blecentral.IOCapKeyboardDisplay: "IO_CAPABILITY_KEYBOARD_DISPLAY",
}

func b2u(b bool) int {
	if b {
		return 1
	}
	return 0
}

// usage renders the menu with the current configuration in its header.
func (h *Harness) usage() string {
	var sb strings.Builder
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(&sb, format, args...)
	}

	p := h.policy
	w("--- CLI for LE Central ---\n")
	w("SM: %v, MITM protection %d, bondable %d, OOB data %d, key range [%d..%d]\n",
		ioCapLabels[p.IOCapability], b2u(p.MITM), b2u(p.Bondable), b2u(p.OOBAvailable),
		p.MinKeySize, blecentral.MaxEncryptionKeySize)
	w("Privacy %d\n", b2u(h.privacy))
	w("Device name %v\n", h.deviceName)
	w("Value Handle: %x\n", h.valueHandle)
	w("Attribute Size: %d\n", h.attributeSize)
	w("---\n")
	w("p/P - privacy flag off\n")
	w("z   - send Connection Parameter Update Request\n")
	w("t   - terminate connection\n")
	w("j   - create LE connection to %v\n", h.tester)
	w("---\n")
	w("d   - discover all services\n")
	w("v   - set value handle\n")
	w("s   - set attribute size\n")
	w("---\n")
	for _, c := range []struct {
		key byte
		ioc blecentral.IOCapability
	}{
		{'e', blecentral.IOCapDisplayOnly},
		{'f', blecentral.IOCapDisplayYesNo},
		{'g', blecentral.IOCapNoInputNoOutput},
		{'h', blecentral.IOCapKeyboardOnly},
		{'i', blecentral.IOCapKeyboardDisplay},
	} {
		w("%c   - %v\n", c.key, ioCapLabels[c.ioc])
	}
	w("o/O - OOB data off/on ('%s')\n", p.OOBData[:])
	w("m/M - MITM protection off/on\n")
	w("b/B - bondable off/on\n")
	w("k/K - encryption key range [%d..%d]/[%d..%d]\n",
		blecentral.MinEncryptionKeySize, blecentral.MaxEncryptionKeySize,
		blecentral.MaxEncryptionKeySize, blecentral.MaxEncryptionKeySize)
	w("---\n")
	w("Ctrl-c - exit\n")
	w("---\n")
	return sb.String()
}

func (h *Harness) showUsage() {
	if h.printer.Format() == report.FormatText {
		h.printf("%v", clearScreen)
	}
	h.printf("%v", h.usage())
}
