package harness

import (
	"bytes"
	"testing"
	"time"

	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []interface{}
}

// fakeStack records every call the harness makes.
type fakeStack struct {
	events chan []byte
	busy   bool
	calls  []call
	oob    blecentral.OOBDataHandler
}

func newFakeStack() *fakeStack {
	return &fakeStack{events: make(chan []byte, 16)}
}

func (s *fakeStack) record(name string, args ...interface{}) error {
	s.calls = append(s.calls, call{name, args})
	return nil
}

// named returns the recorded calls with the given name.
func (s *fakeStack) named(name string) []call {
	var out []call
	for _, c := range s.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (s *fakeStack) Events() <-chan []byte { return s.events }
func (s *fakeStack) CanSendCommand() bool  { return !s.busy }

func (s *fakeStack) SetIOCapability(c blecentral.IOCapability) error {
	return s.record("SetIOCapability", c)
}

func (s *fakeStack) SetAuthenticationRequirements(a blecentral.AuthReq) error {
	return s.record("SetAuthenticationRequirements", a)
}

func (s *fakeStack) SetEncryptionKeySizeRange(min, max int) error {
	return s.record("SetEncryptionKeySizeRange", min, max)
}

func (s *fakeStack) RegisterOOBDataHandler(h blecentral.OOBDataHandler) error {
	s.oob = h
	return s.record("RegisterOOBDataHandler")
}

func (s *fakeStack) SetPrivacy(enable bool) error {
	return s.record("SetPrivacy", enable)
}

func (s *fakeStack) GrantAuthorization(peer blecentral.Addr) error {
	return s.record("GrantAuthorization", peer)
}

func (s *fakeStack) DeclineAuthorization(peer blecentral.Addr) error {
	return s.record("DeclineAuthorization", peer)
}

func (s *fakeStack) SubmitPasskey(peer blecentral.Addr, passkey uint32) error {
	return s.record("SubmitPasskey", peer, passkey)
}

func (s *fakeStack) CreateConnection(p blecentral.ConnParams) error {
	return s.record("CreateConnection", p)
}

func (s *fakeStack) UpdateConnectionParams(handle uint16, p blecentral.ConnUpdateParams) error {
	return s.record("UpdateConnectionParams", handle, p)
}

func (s *fakeStack) Disconnect(handle uint16, reason uint8) error {
	return s.record("Disconnect", handle, reason)
}

func (s *fakeStack) DiscoverPrimaryServices(handle uint16) error {
	return s.record("DiscoverPrimaryServices", handle)
}

func newTestHarness(t *testing.T, opts ...blecentral.Option) (*Harness, *fakeStack, *bytes.Buffer) {
	t.Helper()

	s := newFakeStack()
	out := &bytes.Buffer{}
	h, err := New(s, append([]blecentral.Option{blecentral.OptConsole(out)}, opts...)...)
	require.NoError(t, err)
	return h, s, out
}

func typeKeys(h *Harness, s string) {
	for i := 0; i < len(s); i++ {
		h.handleKey(s[i])
	}
}

func deliver(h *Harness, e evt.Event) {
	h.dispatch(e.Marshal())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}
