package harness

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rigado/blecentral"
	"github.com/rigado/blecentral/evt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peer = blecentral.Addr{Type: blecentral.AddrTypeRandom, MAC: [6]byte{0xc0, 0x01, 0x02, 0x03, 0x04, 0x05}}

func TestConnectionHandleUsedForDisconnect(t *testing.T) {
	h, s, out := newTestHarness(t)

	deliver(h, evt.ConnectionComplete{Handle: 0x0040, Peer: peer})
	assert.Contains(t, out.String(), "Connection complete, handle 0x0040")
	assert.Equal(t, uint16(0x0040), h.Handle())

	typeKeys(h, "t")
	calls := s.named("Disconnect")
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{uint16(0x0040), uint8(0x13)}, calls[0].args)
}

func TestConnectionFailedKeepsHandle(t *testing.T) {
	h, _, out := newTestHarness(t)

	deliver(h, evt.ConnectionComplete{Handle: 0x0040, Peer: peer})
	deliver(h, evt.ConnectionComplete{Status: 0x3e, Handle: 0x0041, Peer: peer})
	assert.Equal(t, uint16(0x0040), h.Handle())
	assert.Contains(t, out.String(), "failed, status 0x3e")
}

func TestIOCapabilityKeepsAuthReq(t *testing.T) {
	h, s, _ := newTestHarness(t)
	typeKeys(h, "MB")
	before := h.policy.AuthReq()
	pushes := len(s.named("SetAuthenticationRequirements"))

	typeKeys(h, "e")

	assert.Equal(t, blecentral.IOCapDisplayOnly, h.policy.IOCapability)
	assert.True(t, h.policy.MITM)
	assert.True(t, h.policy.Bondable)
	assert.Equal(t, before, h.policy.AuthReq())
	assert.Len(t, s.named("SetAuthenticationRequirements"), pushes)

	calls := s.named("SetIOCapability")
	require.Len(t, calls, 1)
	assert.Equal(t, blecentral.IOCapDisplayOnly, calls[0].args[0])
}

func TestIOCapabilityKeys(t *testing.T) {
	for k, want := range map[byte]blecentral.IOCapability{
		'e': blecentral.IOCapDisplayOnly,
		'f': blecentral.IOCapDisplayYesNo,
		'g': blecentral.IOCapNoInputNoOutput,
		'h': blecentral.IOCapKeyboardOnly,
		'i': blecentral.IOCapKeyboardDisplay,
	} {
		h, _, out := newTestHarness(t)
		h.handleKey(k)
		assert.Equal(t, want, h.policy.IOCapability, "key %c", k)
		assert.Contains(t, out.String(), "SM: "+ioCapLabels[want], "key %c", k)
	}
}

func TestAuthReqPushedOncePerToggle(t *testing.T) {
	h, s, _ := newTestHarness(t)

	steps := []struct {
		key  byte
		want blecentral.AuthReq
	}{
		{'M', blecentral.AuthReqMITM},
		{'B', blecentral.AuthReqMITM | blecentral.AuthReqBonding},
		{'m', blecentral.AuthReqBonding},
		{'b', 0},
		{'b', 0},
	}

	for i, st := range steps {
		h.handleKey(st.key)
		calls := s.named("SetAuthenticationRequirements")
		require.Len(t, calls, i+1, "step %d", i)
		assert.Equal(t, st.want, calls[i].args[0], "step %d", i)
	}
}

func TestPasskeyDisplayPadded(t *testing.T) {
	h, _, out := newTestHarness(t)

	deliver(h, evt.PasskeyInputRequest{Peer: peer})
	typeKeys(h, "000000")
	out.Reset()

	deliver(h, evt.PasskeyDisplayRequest{Peer: peer, Passkey: 482913})
	assert.Contains(t, out.String(), "GAP Bonding C0:01:02:03:04:05 (1): Display Passkey '482913'")

	out.Reset()
	deliver(h, evt.PasskeyDisplayRequest{Peer: peer, Passkey: 42})
	assert.Contains(t, out.String(), "Display Passkey '000042'")
}

func TestPasskeyDisplayNamesPeer(t *testing.T) {
	h, _, out := newTestHarness(t)

	deliver(h, evt.PasskeyDisplayRequest{Peer: peer, Passkey: 482913})
	assert.Contains(t, out.String(), "GAP Bonding C0:01:02:03:04:05 (1): Display Passkey '482913'")
	assert.True(t, h.pairing.HasPeer)
	assert.Equal(t, peer, h.pairing.Peer)

	out.Reset()
	deliver(h, evt.PasskeyDisplayCancel{Peer: peer})
	assert.Contains(t, out.String(), "GAP Bonding C0:01:02:03:04:05 (1): Display cancel")
	assert.NotContains(t, out.String(), "00:00:00:00:00:00")
}

func TestPasskeyDisplayCancelWithoutPeer(t *testing.T) {
	h, _, out := newTestHarness(t)

	deliver(h, evt.PasskeyDisplayCancel{})
	assert.Contains(t, out.String(), "GAP Bonding (no peer): Display cancel")
	assert.False(t, h.pairing.HasPeer)
}

func TestPasskeyEntry(t *testing.T) {
	h, s, out := newTestHarness(t)

	deliver(h, evt.PasskeyInputRequest{Peer: peer})
	assert.Contains(t, out.String(), "Enter 6 digit passkey")

	typeKeys(h, "01x2a3")
	assert.Equal(t, 2, h.pairing.Passkey.DigitsRemaining)
	assert.Equal(t, uint32(123), h.pairing.Passkey.Value)
	assert.Empty(t, s.named("SubmitPasskey"))

	// policy changes mid-entry are not commands while digits are pending
	typeKeys(h, "M")
	assert.False(t, h.policy.MITM)

	typeKeys(h, "45")
	calls := s.named("SubmitPasskey")
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{peer, uint32(12345)}, calls[0].args)
	assert.Contains(t, out.String(), "Sending Passkey '012345'")
	assert.False(t, h.pairing.Passkey.Active())

	// back to normal command handling
	typeKeys(h, "M")
	assert.True(t, h.policy.MITM)
}

func TestPasskeyPeerCapturedAtRequest(t *testing.T) {
	h, s, _ := newTestHarness(t)
	other := blecentral.Addr{MAC: [6]byte{1, 1, 1, 1, 1, 1}}

	deliver(h, evt.PasskeyInputRequest{Peer: peer})
	typeKeys(h, "123")
	deliver(h, evt.AuthorizationRequest{Peer: other})
	typeKeys(h, "456")

	calls := s.named("SubmitPasskey")
	require.Len(t, calls, 1)
	assert.Equal(t, peer, calls[0].args[0])
	assert.Equal(t, uint32(123456), calls[0].args[1])
}

func TestOOBHandler(t *testing.T) {
	h, s, _ := newTestHarness(t)
	deliver(h, evt.StackState{State: evt.StateWorking})
	require.NotNil(t, s.oob)

	buf := []byte("ffffffffffffffff")
	assert.False(t, s.oob(peer.Type, peer.MAC, buf))
	assert.Equal(t, "ffffffffffffffff", string(buf))

	typeKeys(h, "O")
	assert.True(t, s.oob(peer.Type, peer.MAC, buf))
	assert.Equal(t, "0123456789012345", string(buf))

	typeKeys(h, "o")
	assert.False(t, s.oob(peer.Type, peer.MAC, make([]byte, 16)))
}

func TestStackWorkingPushesConfig(t *testing.T) {
	h, s, out := newTestHarness(t)

	deliver(h, evt.StackState{State: evt.StateInitializing})
	assert.Empty(t, s.calls)

	deliver(h, evt.StackState{State: evt.StateWorking})
	assert.Contains(t, out.String(), "SM Init completed")
	assert.Contains(t, out.String(), "--- CLI for LE Central ---")

	assert.Equal(t, []interface{}{blecentral.IOCapNoInputNoOutput}, s.named("SetIOCapability")[0].args)
	assert.Equal(t, []interface{}{blecentral.AuthReq(0)}, s.named("SetAuthenticationRequirements")[0].args)
	assert.Equal(t, []interface{}{7, 16}, s.named("SetEncryptionKeySizeRange")[0].args)
	assert.Len(t, s.named("RegisterOOBDataHandler"), 1)
	assert.Empty(t, s.named("CreateConnection"))
}

func TestStackWorkingTwiceKeepsConfig(t *testing.T) {
	h, s, out := newTestHarness(t, blecentral.OptAutoConnect(true))

	deliver(h, evt.StackState{State: evt.StateWorking})
	require.Len(t, s.named("SetIOCapability"), 1)
	require.Len(t, s.named("CreateConnection"), 1)

	out.Reset()
	deliver(h, evt.StackState{State: evt.StateWorking})
	assert.Len(t, s.named("SetIOCapability"), 1)
	assert.Len(t, s.named("CreateConnection"), 1)
	assert.NotContains(t, out.String(), "SM Init completed")
}

func TestJSONFormatKeepsTextOffConsole(t *testing.T) {
	h, _, out := newTestHarness(t, blecentral.OptReportFormat("json"))
	var menu bytes.Buffer
	h.text = &menu

	deliver(h, evt.StackState{State: evt.StateWorking})
	deliver(h, evt.ServiceQueryResult{Service: blecentral.Service{UUID: blecentral.UUID16(0x180f), StartHandle: 1, EndHandle: 5}})

	assert.Contains(t, menu.String(), "--- CLI for LE Central ---")
	assert.NotContains(t, menu.String(), clearScreen)
	assert.Contains(t, menu.String(), "SM Init completed")
	assert.NotContains(t, out.String(), "--- CLI for LE Central ---")
	assert.NotContains(t, out.String(), "SM Init completed")
	assert.Contains(t, out.String(), `"type":"service"`)
}

func TestKeySizeRange(t *testing.T) {
	h, s, _ := newTestHarness(t)
	typeKeys(h, "Kk")
	calls := s.named("SetEncryptionKeySizeRange")
	require.Len(t, calls, 2)
	assert.Equal(t, []interface{}{16, 16}, calls[0].args)
	assert.Equal(t, []interface{}{7, 16}, calls[1].args)
}

func TestQueryCompleteWithoutService(t *testing.T) {
	h, _, out := newTestHarness(t)
	deliver(h, evt.QueryComplete{ConnHandle: 0x40})
	assert.Contains(t, out.String(), "GATT query complete, service none")
}

func TestDiscoveryReports(t *testing.T) {
	h, s, out := newTestHarness(t)
	deliver(h, evt.ConnectionComplete{Handle: 0x0040, Peer: peer})
	typeKeys(h, "d")
	require.Len(t, s.named("DiscoverPrimaryServices"), 1)
	assert.Equal(t, uint16(0x0040), s.named("DiscoverPrimaryServices")[0].args[0])

	svc := blecentral.Service{StartHandle: 1, EndHandle: 5, UUID: blecentral.UUID16(0x1800)}
	deliver(h, evt.ServiceQueryResult{ConnHandle: 0x40, Service: svc})
	deliver(h, evt.CharacteristicQueryResult{ConnHandle: 0x40, Characteristic: blecentral.Characteristic{
		StartHandle: 2, ValueHandle: 3, EndHandle: 5, Properties: blecentral.CharRead, UUID: blecentral.UUID16(0x2a00),
	}})
	deliver(h, evt.QueryComplete{ConnHandle: 0x40})

	o := out.String()
	assert.Contains(t, o, "    * service: [0x0001-0x0005], uuid 1800\n")
	assert.Contains(t, o, "    * characteristic: [0x0002-0x0003-0x0005], properties 0x02, uuid 2a00\n")
	assert.Contains(t, o, "GATT query complete, service 1800")
}

func TestDisconnectKeepsStateByDefault(t *testing.T) {
	h, s, _ := newTestHarness(t)
	deliver(h, evt.ConnectionComplete{Handle: 0x0040, Peer: peer})
	deliver(h, evt.ServiceQueryResult{Service: blecentral.Service{UUID: blecentral.UUID16(0x1800)}})
	deliver(h, evt.DisconnectionComplete{Handle: 0x0040, Reason: 0x13})

	// the stale handle is still targeted
	assert.Equal(t, uint16(0x0040), h.Handle())
	assert.NotNil(t, h.discovery.Current)
	typeKeys(h, "t")
	assert.Equal(t, uint16(0x0040), s.named("Disconnect")[0].args[0])
}

func TestClearOnDisconnect(t *testing.T) {
	h, _, out := newTestHarness(t, blecentral.OptClearOnDisconnect(true))
	deliver(h, evt.ConnectionComplete{Handle: 0x0040, Peer: peer})
	deliver(h, evt.PasskeyInputRequest{Peer: peer})
	deliver(h, evt.ServiceQueryResult{Service: blecentral.Service{UUID: blecentral.UUID16(0x1800)}})
	deliver(h, evt.DisconnectionComplete{Handle: 0x0040, Reason: 0x08})

	assert.Equal(t, uint16(0), h.Handle())
	assert.False(t, h.pairing.HasPeer)
	assert.False(t, h.pairing.Passkey.Active())
	assert.Nil(t, h.discovery.Current)
	assert.Contains(t, out.String(), "Disconnected, handle 0x0040, reason 0x08")
}

func TestAuthorizationAuto(t *testing.T) {
	h, s, _ := newTestHarness(t)
	deliver(h, evt.AuthorizationRequest{Peer: peer})
	calls := s.named("GrantAuthorization")
	require.Len(t, calls, 1)
	assert.Equal(t, peer, calls[0].args[0])
	assert.Equal(t, stateNormal, h.state)
}

func TestAuthorizationPrompt(t *testing.T) {
	h, s, out := newTestHarness(t, blecentral.OptAuthorizationPolicy(blecentral.AuthPrompt))

	deliver(h, evt.AuthorizationRequest{Peer: peer})
	assert.Empty(t, s.named("GrantAuthorization"))
	assert.Contains(t, out.String(), "grant? (y/n)")

	typeKeys(h, "xzj")
	assert.Empty(t, s.named("CreateConnection"))
	assert.Empty(t, s.named("UpdateConnectionParams"))

	typeKeys(h, "n")
	calls := s.named("DeclineAuthorization")
	require.Len(t, calls, 1)
	assert.Equal(t, peer, calls[0].args[0])

	deliver(h, evt.AuthorizationRequest{Peer: peer})
	typeKeys(h, "Y")
	assert.Len(t, s.named("GrantAuthorization"), 1)
	assert.Equal(t, stateNormal, h.state)
}

func TestAuthorizationDuringNumericPrompt(t *testing.T) {
	h, s, out := newTestHarness(t, blecentral.OptAuthorizationPolicy(blecentral.AuthPrompt))

	typeKeys(h, "s4")
	deliver(h, evt.AuthorizationRequest{Peer: peer})
	assert.Equal(t, stateAuthorization, h.state)

	out.Reset()
	typeKeys(h, "y")
	assert.Len(t, s.named("GrantAuthorization"), 1)
	assert.Equal(t, stateNumeric, h.state)
	assert.Contains(t, out.String(), "Attribute Size: 4")

	typeKeys(h, "2\r")
	assert.Equal(t, uint16(42), h.attributeSize)
	assert.Equal(t, stateNormal, h.state)
}

func TestBusyTransportSkipsCommands(t *testing.T) {
	h, s, out := newTestHarness(t)
	s.busy = true

	typeKeys(h, "jtzd")
	assert.Empty(t, s.named("CreateConnection"))
	assert.Empty(t, s.named("Disconnect"))
	assert.Empty(t, s.named("UpdateConnectionParams"))
	assert.Empty(t, s.named("DiscoverPrimaryServices"))
	assert.NotContains(t, out.String(), "Terminating connection")

	// local configuration is not gated
	typeKeys(h, "M")
	assert.Len(t, s.named("SetAuthenticationRequirements"), 1)

	// nothing is queued for later
	s.busy = false
	deliver(h, evt.QueryComplete{})
	assert.Empty(t, s.named("CreateConnection"))
}

func TestCreateConnectionParams(t *testing.T) {
	tester := blecentral.Addr{Type: blecentral.AddrTypeRandom, MAC: [6]byte{1, 2, 3, 4, 5, 6}}
	h, s, out := newTestHarness(t, blecentral.OptTester(tester))

	typeKeys(h, "jz")
	calls := s.named("CreateConnection")
	require.Len(t, calls, 1)
	p := calls[0].args[0].(blecentral.ConnParams)
	assert.Equal(t, tester, p.Peer)
	assert.Equal(t, uint16(1000), p.ScanInterval)
	assert.Equal(t, uint16(80), p.ConnIntervalMax)
	assert.Equal(t, uint16(2000), p.SupervisionTimeout)
	assert.Contains(t, out.String(), "Create connection to 01:02:03:04:05:06")

	up := s.named("UpdateConnectionParams")
	require.Len(t, up, 1)
	assert.Equal(t, blecentral.DefaultConnUpdateParams, up[0].args[1])
}

func TestAutoConnect(t *testing.T) {
	h, s, _ := newTestHarness(t, blecentral.OptAutoConnect(true))
	s.busy = true
	deliver(h, evt.StackState{State: evt.StateWorking})
	assert.Empty(t, s.named("CreateConnection"))

	s.busy = false
	deliver(h, evt.AdvertisingReport{Addr: peer})
	assert.Len(t, s.named("CreateConnection"), 1)

	deliver(h, evt.AdvertisingReport{Addr: peer})
	assert.Len(t, s.named("CreateConnection"), 1)
}

func TestNumericPrompts(t *testing.T) {
	h, _, out := newTestHarness(t)

	typeKeys(h, "v")
	assert.Equal(t, stateNumeric, h.state)
	typeKeys(h, "1f\r")
	assert.Equal(t, uint16(0x1f), h.valueHandle)
	assert.Equal(t, stateNormal, h.state)
	assert.Contains(t, out.String(), "Value Handle: 1f\n")

	typeKeys(h, "s23\x7f0\n")
	assert.Equal(t, uint16(20), h.attributeSize)

	// other keys are line input, not commands
	typeKeys(h, "sM")
	assert.False(t, h.policy.MITM)
	typeKeys(h, "\n")
	assert.Equal(t, uint16(20), h.attributeSize)
	assert.Contains(t, out.String(), `Invalid attribute size "M", keeping 20`)

	typeKeys(h, "vzz\r")
	assert.Equal(t, uint16(0x1f), h.valueHandle)
}

func TestMalformedPacketsIgnored(t *testing.T) {
	h, s, out := newTestHarness(t)
	h.dispatch(nil)
	h.dispatch([]byte{0x3e, 0x02, 0x01})
	h.dispatch([]byte{0x99, 0x00})
	h.dispatch([]byte{0xe2, 0x0d, 0x00})
	assert.Empty(t, s.calls)
	assert.Empty(t, out.String())
}

func TestUnknownKeyShowsMenu(t *testing.T) {
	h, _, out := newTestHarness(t)
	typeKeys(h, "?")
	o := out.String()
	assert.True(t, strings.HasPrefix(o, clearScreen))
	for _, s := range []string{
		"SM: IO_CAPABILITY_NO_INPUT_NO_OUTPUT, MITM protection 0, bondable 0, OOB data 0, key range [7..16]",
		"Privacy 0",
		"Device name blecentral",
		"Value Handle: 1",
		"Attribute Size: 1",
		"j   - create LE connection to 00:1B:DC:07:32:EF",
		"o/O - OOB data off/on ('0123456789012345')",
	} {
		assert.Contains(t, o, s)
	}
}

func TestPairingComplete(t *testing.T) {
	h, _, out := newTestHarness(t)
	deliver(h, evt.PairingComplete{Peer: peer})
	assert.Contains(t, out.String(), "pairing complete")

	deliver(h, evt.PairingComplete{Peer: peer, Status: 1, Reason: 0x05})
	assert.Contains(t, out.String(), "pairing failed, reason 0x05 (pairing not supported)")
}

func TestRun(t *testing.T) {
	h, s, out := newTestHarness(t)
	keys := make(chan byte, 4)

	s.events <- evt.ConnectionComplete{Handle: 0x0040, Peer: peer}.Marshal()
	keys <- 't'

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background(), keys) }()

	// ctrl-c only arrives once the packet and the first key are handled
	waitFor(t, func() bool { return len(s.events) == 0 && len(keys) == 0 })
	keys <- keyCtrlC

	select {
	case err := <-done:
		assert.Equal(t, ErrInterrupted, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.Contains(t, out.String(), "Connection complete")
}

func TestRunContextDone(t *testing.T) {
	h, _, _ := newTestHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, context.Canceled, h.Run(ctx, nil))
}

func TestRunStackClosed(t *testing.T) {
	h, s, _ := newTestHarness(t)
	close(s.events)
	assert.Equal(t, ErrStackClosed, h.Run(context.Background(), nil))
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(newFakeStack(), blecentral.OptReportFormat("xml"))
	assert.Error(t, err)

	p := blecentral.DefaultSecurityPolicy()
	p.MinKeySize = 3
	_, err = New(newFakeStack(), blecentral.OptSecurityPolicy(p))
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}
