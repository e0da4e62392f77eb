package bluez

import (
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
)

const (
	bluezService = "org.bluez"

	ifaceAdapter  = "org.bluez.Adapter1"
	ifaceDevice   = "org.bluez.Device1"
	ifaceAgent    = "org.bluez.Agent1"
	ifaceAgentMgr = "org.bluez.AgentManager1"
	ifaceGattSvc  = "org.bluez.GattService1"
	ifaceGattChar = "org.bluez.GattCharacteristic1"
	ifaceObjMgr   = "org.freedesktop.DBus.ObjectManager"
	ifaceProps    = "org.freedesktop.DBus.Properties"

	bluezRoot = dbus.ObjectPath("/org/bluez")
	agentPath = dbus.ObjectPath("/org/rigado/blecentral/agent")

	eventChanSize = 64
	firstHandle   = 0x0040
)

// HCI status codes reported in synthesized events.
const (
	statusSuccess               = 0x00
	statusUnspecified           = 0x1f
	statusConnFailedToEstablish = 0x3e
	reasonLocalHost             = 0x16
)

var (
	// ErrBusy is returned when a command is issued while another is in flight.
	ErrBusy = errors.New("command in flight")

	ErrClosed = errors.New("stack closed")

	errUnknownHandle = errors.New("unknown connection handle")
)

// busConn is the subset of *dbus.Conn the stack uses.
type busConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	AddMatchSignal(options ...dbus.MatchOption) error
	Close() error
}

var _ blecentral.Stack = (*Stack)(nil)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Stack drives a local BlueZ adapter over the system bus and reports what
// happens as event packets.
type Stack struct {
	conn    busConn
	adapter dbus.ObjectPath
	logger  blecentral.Logger

	scan         bool
	agentTimeout time.Duration
	gattTimeout  time.Duration

	events  chan []byte
	tokens  chan struct{}
	signals chan *dbus.Signal

	muClose  sync.Mutex
	done     chan struct{}
	cleanups []func()

	agent *agent

	mu         sync.Mutex
	devices    map[dbus.ObjectPath]*device
	handles    map[uint16]*device
	nextHandle uint16
	connParams blecentral.ConnParams
	authReq    blecentral.AuthReq
	minKey     int
	maxKey     int
	privacy    bool
	oob        blecentral.OOBDataHandler
	updates    map[uint16]blecentral.ConnUpdateParams
}

// Open connects to the system bus and brings up the named adapter (hci0
// when empty).
func Open(adapter string, opts ...Option) (*Stack, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errors.Wrap(err, "system bus")
	}
	s, err := newStack(conn, adapter, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.start(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newStack(conn busConn, adapter string, opts ...Option) (*Stack, error) {
	if adapter == "" {
		adapter = "hci0"
	}
	s := &Stack{
		conn:         conn,
		adapter:      bluezRoot + dbus.ObjectPath("/"+adapter),
		logger:       blecentral.GetLogger().ChildLogger(map[string]interface{}{"component": "bluez", "adapter": adapter}),
		agentTimeout: 60 * time.Second,
		gattTimeout:  30 * time.Second,

		events:  make(chan []byte, eventChanSize),
		tokens:  make(chan struct{}, 1),
		signals: make(chan *dbus.Signal, eventChanSize),
		done:    make(chan struct{}),

		devices:    make(map[dbus.ObjectPath]*device),
		handles:    make(map[uint16]*device),
		nextHandle: firstHandle,
		minKey:     blecentral.MinEncryptionKeySize,
		maxKey:     blecentral.MaxEncryptionKeySize,
		updates:    make(map[uint16]blecentral.ConnUpdateParams),
	}
	s.tokens <- struct{}{}
	s.agent = newAgent(s)
	if err := s.Option(opts...); err != nil {
		return nil, errors.Wrap(err, "can't set options")
	}
	return s, nil
}

// Option sets the options specified.
func (s *Stack) Option(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stack) start() error {
	s.emit(evt.StackState{State: evt.StateInitializing})

	ad := s.conn.Object(bluezService, s.adapter)
	if err := ad.Call(ifaceProps+".Set", 0, ifaceAdapter, "Powered", dbus.MakeVariant(true)).Err; err != nil {
		return errors.Wrapf(err, "power on %v", s.adapter)
	}

	if err := s.conn.Export(s.agent, agentPath, ifaceAgent); err != nil {
		return errors.Wrap(err, "export agent")
	}
	s.addCleanup(func() { s.conn.Export(nil, agentPath, ifaceAgent) })
	if err := s.registerAgent(blecentral.IOCapNoInputNoOutput); err != nil {
		return err
	}
	s.addCleanup(s.unregisterAgent)

	s.conn.Signal(s.signals)
	s.addCleanup(func() { s.conn.RemoveSignal(s.signals) })
	matches := [][]dbus.MatchOption{
		{dbus.WithMatchInterface(ifaceObjMgr), dbus.WithMatchMember("InterfacesAdded")},
		{dbus.WithMatchInterface(ifaceObjMgr), dbus.WithMatchMember("InterfacesRemoved")},
		{dbus.WithMatchInterface(ifaceProps), dbus.WithMatchMember("PropertiesChanged")},
	}
	for _, m := range matches {
		if err := s.conn.AddMatchSignal(m...); err != nil {
			return errors.Wrap(err, "add match")
		}
	}

	objs, err := s.managedObjects()
	if err != nil {
		return err
	}
	for path, ifaces := range objs {
		if p, ok := ifaces[ifaceDevice]; ok {
			s.deviceAdded(path, p, false)
		}
	}

	if s.scan {
		filter := map[string]interface{}{"Transport": "le", "DuplicateData": true}
		if err := ad.Call(ifaceAdapter+".SetDiscoveryFilter", 0, filter).Err; err != nil {
			return errors.Wrap(err, "discovery filter")
		}
		if err := ad.Call(ifaceAdapter+".StartDiscovery", 0).Err; err != nil {
			return errors.Wrap(err, "start discovery")
		}
		s.addCleanup(func() { ad.Call(ifaceAdapter+".StopDiscovery", 0) })
	}

	go s.loop()
	s.emit(evt.StackState{State: evt.StateWorking})
	s.logger.Info("adapter up")
	return nil
}

func (s *Stack) addCleanup(f func()) {
	s.cleanups = append(s.cleanups, f)
}

// Close stops the event loop, releases the agent and closes the bus.
func (s *Stack) Close() error {
	s.muClose.Lock()
	defer s.muClose.Unlock()

	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cleanups = nil
	return s.conn.Close()
}

func (s *Stack) isOpen() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Events delivers event packets until the stack is closed.
func (s *Stack) Events() <-chan []byte {
	return s.events
}

func (s *Stack) emit(e evt.Event) {
	select {
	case <-s.done:
	case s.events <- e.Marshal():
	}
}

// CanSendCommand reports whether no command is in flight.
func (s *Stack) CanSendCommand() bool {
	return len(s.tokens) == 1
}

func (s *Stack) acquire() error {
	if !s.isOpen() {
		return ErrClosed
	}
	select {
	case <-s.tokens:
		return nil
	default:
		return ErrBusy
	}
}

func (s *Stack) release() {
	select {
	case s.tokens <- struct{}{}:
	default:
	}
}

func (s *Stack) managedObjects() (managedObjects, error) {
	objs := managedObjects{}
	err := s.conn.Object(bluezService, "/").Call(ifaceObjMgr+".GetManagedObjects", 0).Store(&objs)
	if err != nil {
		return nil, errors.Wrap(err, "managed objects")
	}
	return objs, nil
}

func (s *Stack) loop() {
	for {
		select {
		case <-s.done:
			return
		case sig, ok := <-s.signals:
			if !ok {
				s.logger.Warn("signal channel closed")
				return
			}
			s.handleSignal(sig)
		}
	}
}

func (s *Stack) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case ifaceObjMgr + ".InterfacesAdded":
		var path dbus.ObjectPath
		var ifaces map[string]map[string]dbus.Variant
		if err := dbus.Store(sig.Body, &path, &ifaces); err != nil {
			s.logger.Debugf("InterfacesAdded: %v", err)
			return
		}
		if p, ok := ifaces[ifaceDevice]; ok {
			s.deviceAdded(path, p, true)
		}

	case ifaceObjMgr + ".InterfacesRemoved":
		var path dbus.ObjectPath
		var ifaces []string
		if err := dbus.Store(sig.Body, &path, &ifaces); err != nil {
			s.logger.Debugf("InterfacesRemoved: %v", err)
			return
		}
		for _, i := range ifaces {
			if i == ifaceDevice {
				s.deviceRemoved(path)
			}
		}

	case ifaceProps + ".PropertiesChanged":
		var iface string
		var changed map[string]dbus.Variant
		var invalidated []string
		if err := dbus.Store(sig.Body, &iface, &changed, &invalidated); err != nil {
			s.logger.Debugf("PropertiesChanged: %v", err)
			return
		}
		if iface == ifaceDevice {
			s.deviceChanged(sig.Path, changed, invalidated)
		}
	}
}
