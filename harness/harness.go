// Package harness is an interactive LE central test console. It reacts to
// stack events and single keystrokes from one goroutine.
package harness

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/report"
)

// ErrInterrupted is returned by Run when Ctrl-C is read from the console.
var ErrInterrupted = errors.New("interrupted")

// ErrStackClosed is returned by Run when the stack closes its event channel.
var ErrStackClosed = errors.New("stack closed")

const keyCtrlC = 0x03

var defaultTester = blecentral.Addr{
	Type: blecentral.AddrTypePublic,
	MAC:  [6]byte{0x00, 0x1b, 0xdc, 0x07, 0x32, 0xef},
}

type inputState int

const (
	stateNormal inputState = iota
	stateNumeric
	stateAuthorization
)

// Harness owns all session state. Its methods must only be called from
// the goroutine running Run.
type Harness struct {
	stack   blecentral.Stack
	out     io.Writer
	text    io.Writer
	log     blecentral.Logger
	printer *report.Printer
	format  report.Format

	deviceName        string
	tester            blecentral.Addr
	connParams        blecentral.ConnParams
	authPolicy        blecentral.AuthPolicy
	clearOnDisconnect bool
	autoConnect       bool

	policy    blecentral.SecurityPolicy
	privacy   bool
	pairing   PairingSession
	discovery DiscoverySession
	handle    uint16

	valueHandle   uint16
	attributeSize uint16

	state       inputState
	resume      inputState
	prompt      numericPrompt
	pendingAuth blecentral.Addr

	ready          bool
	connectPending bool
}

// New creates a harness driving stack.
func New(stack blecentral.Stack, opts ...blecentral.Option) (*Harness, error) {
	if stack == nil {
		return nil, errors.New("nil stack")
	}

	h := &Harness{
		stack:         stack,
		out:           os.Stdout,
		log:           blecentral.GetLogger().ChildLogger(map[string]interface{}{"component": "harness"}),
		deviceName:    "blecentral",
		tester:        defaultTester,
		connParams:    blecentral.DefaultConnParams(defaultTester),
		policy:        blecentral.DefaultSecurityPolicy(),
		valueHandle:   1,
		attributeSize: 1,
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, errors.Wrap(err, "harness option")
		}
	}

	h.connParams.Peer = h.tester
	if err := blecentral.ValidateConnParams(h.connParams); err != nil {
		return nil, errors.Wrap(err, "connection parameters")
	}
	if err := h.policy.Validate(); err != nil {
		return nil, errors.Wrap(err, "security policy")
	}

	h.printer = report.NewPrinter(h.out, h.format)
	// stdout carries only records in JSON mode
	h.text = h.out
	if h.format == report.FormatJSON {
		h.text = os.Stderr
	}
	return h, nil
}

// Run multiplexes stack events and console keys until ctx is done, the
// stack goes away or Ctrl-C is typed. A nil or closed keys channel just
// disables console input.
func (h *Harness) Run(ctx context.Context, keys <-chan byte) error {
	events := h.stack.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case b, ok := <-events:
			if !ok {
				return ErrStackClosed
			}
			h.dispatch(b)

		case k, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			if k == keyCtrlC {
				return ErrInterrupted
			}
			h.handleKey(k)
		}
	}
}

// Handle returns the current connection handle, 0 when unset.
func (h *Harness) Handle() uint16 {
	return h.handle
}

func (h *Harness) printf(format string, args ...interface{}) {
	fmt.Fprintf(h.text, format, args...)
}

// gapRun issues the deferred action, if any, once the transport can take it.
func (h *Harness) gapRun() {
	if !h.stack.CanSendCommand() {
		return
	}

	if h.connectPending {
		h.connectPending = false
		h.createConnection()
	}
}

// sendCommand runs a transport-bound command unless the transport is busy.
func (h *Harness) sendCommand(name string, f func() error) {
	if !h.stack.CanSendCommand() {
		h.log.Debugf("%v skipped, transport busy", name)
		return
	}
	if err := f(); err != nil {
		h.log.Warnf("%v: %v", name, err)
	}
}

// config runs a local security manager call; failures are only logged.
func (h *Harness) config(name string, err error) {
	if err != nil {
		h.log.Warnf("%v: %v", name, err)
	}
}

func (h *Harness) pushSecurityConfig() {
	h.config("set io capability", h.stack.SetIOCapability(h.policy.IOCapability))
	h.pushAuthReq()
	h.pushKeySizeRange()
	h.config("register oob handler", h.stack.RegisterOOBDataHandler(h.policy.OOB))
	h.config("set privacy", h.stack.SetPrivacy(h.privacy))
}

func (h *Harness) pushAuthReq() {
	h.config("set authentication requirements", h.stack.SetAuthenticationRequirements(h.policy.AuthReq()))
}

func (h *Harness) pushKeySizeRange() {
	h.config("set key size range", h.stack.SetEncryptionKeySizeRange(h.policy.MinKeySize, blecentral.MaxEncryptionKeySize))
}

func (h *Harness) createConnection() {
	h.printf("Create connection to %v\n", h.tester)
	if err := h.stack.CreateConnection(h.connParams); err != nil {
		h.log.Warnf("create connection: %v", err)
	}
}
