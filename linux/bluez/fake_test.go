package bluez

import (
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rigado/blecentral/evt"
	"github.com/stretchr/testify/require"
)

type busCall struct {
	path   dbus.ObjectPath
	method string
	args   []interface{}
}

type replyFn func(args []interface{}) ([]interface{}, error)

// fakeBus records method calls and answers them from a per-method table.
type fakeBus struct {
	mu       sync.Mutex
	calls    []busCall
	replies  map[string]replyFn
	exported map[dbus.ObjectPath]interface{}
	matches  int
	signals  chan<- *dbus.Signal
	closed   bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		replies:  map[string]replyFn{},
		exported: map[dbus.ObjectPath]interface{}{},
	}
}

func (b *fakeBus) reply(method string, f replyFn) {
	b.mu.Lock()
	b.replies[method] = f
	b.mu.Unlock()
}

func (b *fakeBus) objects(objs managedObjects) {
	b.reply(ifaceObjMgr+".GetManagedObjects", func([]interface{}) ([]interface{}, error) {
		return []interface{}{map[dbus.ObjectPath]map[string]map[string]dbus.Variant(objs)}, nil
	})
}

func (b *fakeBus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return &fakeObject{bus: b, path: path}
}

func (b *fakeBus) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v == nil {
		delete(b.exported, path)
		return nil
	}
	b.exported[path] = v
	return nil
}

func (b *fakeBus) Signal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	b.signals = ch
	b.mu.Unlock()
}

func (b *fakeBus) RemoveSignal(ch chan<- *dbus.Signal) {
	b.mu.Lock()
	b.signals = nil
	b.mu.Unlock()
}

func (b *fakeBus) AddMatchSignal(options ...dbus.MatchOption) error {
	b.mu.Lock()
	b.matches++
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) call(path dbus.ObjectPath, method string, args []interface{}) *dbus.Call {
	b.mu.Lock()
	b.calls = append(b.calls, busCall{path: path, method: method, args: args})
	f := b.replies[method]
	b.mu.Unlock()

	c := &dbus.Call{Path: path, Method: method, Args: args}
	if f != nil {
		c.Body, c.Err = f(args)
	}
	return c
}

func (b *fakeBus) called(method string) []busCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busCall
	for _, c := range b.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (b *fakeBus) send(t *testing.T, path dbus.ObjectPath, name string, body ...interface{}) {
	b.mu.Lock()
	ch := b.signals
	b.mu.Unlock()
	require.NotNil(t, ch, "no signal subscriber")
	ch <- &dbus.Signal{Path: path, Name: name, Body: body}
}

func (b *fakeBus) propsChanged(t *testing.T, path dbus.ObjectPath, changed map[string]dbus.Variant) {
	b.send(t, path, ifaceProps+".PropertiesChanged", ifaceDevice, changed, []string{})
}

type fakeObject struct {
	dbus.BusObject
	bus  *fakeBus
	path dbus.ObjectPath
}

func (o *fakeObject) Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	return o.bus.call(o.path, method, args)
}

const (
	testDevPath = dbus.ObjectPath("/org/bluez/hci0/dev_00_1B_DC_07_32_EF")
	testDevMAC  = "00:1B:DC:07:32:EF"
)

func testDevice(extra map[string]dbus.Variant) map[string]map[string]dbus.Variant {
	p := map[string]dbus.Variant{
		"Address":     dbus.MakeVariant(testDevMAC),
		"AddressType": dbus.MakeVariant("public"),
	}
	for k, v := range extra {
		p[k] = v
	}
	return map[string]map[string]dbus.Variant{ifaceDevice: p}
}

// newTestStack starts a stack over a fake bus and consumes the start-up
// state events.
func newTestStack(t *testing.T, objs managedObjects, opts ...Option) (*Stack, *fakeBus) {
	bus := newFakeBus()
	if objs == nil {
		objs = managedObjects{}
	}
	bus.objects(objs)

	opts = append([]Option{OptAgentTimeout(2 * time.Second), OptGattTimeout(2 * time.Second)}, opts...)
	s, err := newStack(bus, "hci0", opts...)
	require.NoError(t, err)
	require.NoError(t, s.start())
	t.Cleanup(func() { s.Close() })

	require.Equal(t, evt.StackState{State: evt.StateInitializing}, nextEvent(t, s))
	require.Equal(t, evt.StackState{State: evt.StateWorking}, nextEvent(t, s))
	return s, bus
}

func nextEvent(t *testing.T, s *Stack) evt.Event {
	t.Helper()
	select {
	case b := <-s.Events():
		e, err := evt.Decode(b)
		require.NoError(t, err)
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return nil
}

func noEvent(t *testing.T, s *Stack) {
	t.Helper()
	select {
	case b := <-s.Events():
		t.Fatalf("unexpected event % X", b)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitIdle(t *testing.T, s *Stack) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.CanSendCommand() {
		if time.Now().After(deadline) {
			t.Fatal("command still in flight")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
