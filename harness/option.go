package harness

import (
	"io"

	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/report"
)

// SetConsole sets where menus, prompts and reports are printed. In JSON
// mode only reports go there; the rest goes to stderr.
func (h *Harness) SetConsole(w io.Writer) error {
	if w == nil {
		return errors.New("nil console")
	}
	h.out = w
	return nil
}

func (h *Harness) SetLogger(l blecentral.Logger) error {
	if l == nil {
		return errors.New("nil logger")
	}
	h.log = l
	return nil
}

func (h *Harness) SetDeviceName(name string) error {
	h.deviceName = name
	return nil
}

func (h *Harness) SetSecurityPolicy(p blecentral.SecurityPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	h.policy = p
	return nil
}

func (h *Harness) SetTester(a blecentral.Addr) error {
	h.tester = a
	return nil
}

// SetConnParams overrides default connection parameters.
func (h *Harness) SetConnParams(p blecentral.ConnParams) error {
	h.connParams = p
	return nil
}

func (h *Harness) SetAuthorizationPolicy(p blecentral.AuthPolicy) error {
	h.authPolicy = p
	return nil
}

func (h *Harness) SetClearOnDisconnect(clear bool) error {
	h.clearOnDisconnect = clear
	return nil
}

func (h *Harness) SetAutoConnect(auto bool) error {
	h.autoConnect = auto
	return nil
}

func (h *Harness) SetReportFormat(format string) error {
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	h.format = f
	return nil
}
