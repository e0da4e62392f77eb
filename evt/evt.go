// Package evt decodes the packets a stack delivers into typed events.
package evt

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/rigado/blecentral"
)

// ErrUnknownEvent is returned by Decode for codes the harness does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// Event is a decoded packet.
type Event interface {
	Code() uint8
	// Marshal encodes the event as [code][param-len][params...].
	Marshal() []byte
}

type decoder func(params []byte) (Event, error)

var decoders = map[byte]decoder{
	StackStateCode:                decodeStackState,
	DisconnectionCompleteCode:     decodeDisconnectionComplete,
	LEMetaCode:                    decodeLEMeta,
	PasskeyDisplayNumberCode:      decodePasskeyDisplay,
	PasskeyDisplayCancelCode:      decodePasskeyDisplayCancel,
	PasskeyInputNumberCode:        decodePasskeyInput,
	AuthorizationRequestCode:      decodeAuthorizationRequest,
	PairingCompleteCode:           decodePairingComplete,
	AdvertisingReportCode:         decodeAdvertisingReport,
	ServiceQueryResultCode:        decodeServiceQueryResult,
	CharacteristicQueryResultCode: decodeCharacteristicQueryResult,
	QueryCompleteCode:             decodeQueryComplete,
}

// Decode parses one packet. Parameters are bounded by the declared
// length; variable sized fields alias b.
func Decode(b []byte) (Event, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("packet too short: %v bytes", len(b))
	}

	code, plen := b[0], int(b[1])
	params, err := getBytes(b, 2, plen)
	if err != nil {
		return nil, errors.Wrapf(err, "event 0x%02x: param length %v", code, plen)
	}

	dec, ok := decoders[code]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEvent, "code 0x%02x", code)
	}

	e, err := dec(params)
	if err != nil {
		return nil, errors.Wrapf(err, "event 0x%02x", code)
	}
	return e, nil
}

func packet(code byte, params []byte) []byte {
	b := make([]byte, 0, 2+len(params))
	b = append(b, code, byte(len(params)))
	return append(b, params...)
}

// StackState reports a transition of the host stack.
type StackState struct {
	State uint8
}

func (StackState) Code() uint8 { return StackStateCode }

func (e StackState) Marshal() []byte {
	return packet(StackStateCode, []byte{e.State})
}

func decodeStackState(p []byte) (Event, error) {
	s, err := getByte(p, 0, 0)
	if err != nil {
		return nil, err
	}
	return StackState{State: s}, nil
}

// ConnectionComplete is the LE connection complete meta event.
type ConnectionComplete struct {
	Status             uint8
	Handle             uint16
	Role               uint8
	Peer               blecentral.Addr
	Interval           uint16
	Latency            uint16
	SupervisionTimeout uint16
	ClockAccuracy      uint8
}

func (ConnectionComplete) Code() uint8 { return LEMetaCode }

func (e ConnectionComplete) Marshal() []byte {
	p := []byte{LEConnectionCompleteSubCode, e.Status}
	p = putUint16LE(p, e.Handle)
	p = append(p, e.Role, byte(e.Peer.Type))
	p = putAddr(p, e.Peer.MAC)
	p = putUint16LE(p, e.Interval)
	p = putUint16LE(p, e.Latency)
	p = putUint16LE(p, e.SupervisionTimeout)
	p = append(p, e.ClockAccuracy)
	return packet(LEMetaCode, p)
}

func decodeLEMeta(p []byte) (Event, error) {
	sub, err := getByte(p, 0, 0xff)
	if err != nil {
		return nil, err
	}
	if sub != LEConnectionCompleteSubCode {
		return nil, errors.Wrapf(ErrUnknownEvent, "le meta subevent 0x%02x", sub)
	}

	var e ConnectionComplete
	if e.Status, err = getByte(p, 1, 0xff); err != nil {
		return nil, err
	}
	if e.Handle, err = getUint16LE(p, 2, 0); err != nil {
		return nil, err
	}
	if e.Role, err = getByte(p, 4, 0); err != nil {
		return nil, err
	}
	at, err := getByte(p, 5, 0)
	if err != nil {
		return nil, err
	}
	mac, err := getAddr(p, 6)
	if err != nil {
		return nil, err
	}
	e.Peer = blecentral.NewAddr(blecentral.AddrType(at), mac)

	// trailing connection parameters are informational
	e.Interval, _ = getUint16LE(p, 12, 0)
	e.Latency, _ = getUint16LE(p, 14, 0)
	e.SupervisionTimeout, _ = getUint16LE(p, 16, 0)
	e.ClockAccuracy, _ = getByte(p, 18, 0)
	return e, nil
}

// DisconnectionComplete reports a dropped link.
type DisconnectionComplete struct {
	Status uint8
	Handle uint16
	Reason uint8
}

func (DisconnectionComplete) Code() uint8 { return DisconnectionCompleteCode }

func (e DisconnectionComplete) Marshal() []byte {
	p := []byte{e.Status}
	p = putUint16LE(p, e.Handle)
	p = append(p, e.Reason)
	return packet(DisconnectionCompleteCode, p)
}

func decodeDisconnectionComplete(p []byte) (Event, error) {
	var e DisconnectionComplete
	var err error
	if e.Status, err = getByte(p, 0, 0xff); err != nil {
		return nil, err
	}
	if e.Handle, err = getUint16LE(p, 1, 0); err != nil {
		return nil, err
	}
	if e.Reason, err = getByte(p, 3, 0); err != nil {
		return nil, err
	}
	return e, nil
}

// Security manager events all start with the peer's address type and address.
func decodePeer(p []byte) (blecentral.Addr, error) {
	at, err := getByte(p, 0, 0)
	if err != nil {
		return blecentral.Addr{}, err
	}
	mac, err := getAddr(p, 1)
	if err != nil {
		return blecentral.Addr{}, err
	}
	return blecentral.NewAddr(blecentral.AddrType(at), mac), nil
}

func putPeer(a blecentral.Addr) []byte {
	return putAddr([]byte{byte(a.Type)}, a.MAC)
}

// PasskeyInputRequest asks the user to type the passkey shown on the peer.
type PasskeyInputRequest struct {
	Peer blecentral.Addr
}

func (PasskeyInputRequest) Code() uint8 { return PasskeyInputNumberCode }

func (e PasskeyInputRequest) Marshal() []byte {
	return packet(PasskeyInputNumberCode, putPeer(e.Peer))
}

func decodePasskeyInput(p []byte) (Event, error) {
	a, err := decodePeer(p)
	if err != nil {
		return nil, err
	}
	return PasskeyInputRequest{Peer: a}, nil
}

// PasskeyDisplayRequest carries a passkey generated by the security manager.
type PasskeyDisplayRequest struct {
	Peer    blecentral.Addr
	Passkey uint32
}

func (PasskeyDisplayRequest) Code() uint8 { return PasskeyDisplayNumberCode }

func (e PasskeyDisplayRequest) Marshal() []byte {
	p := putPeer(e.Peer)
	p = append(p, byte(e.Passkey), byte(e.Passkey>>8), byte(e.Passkey>>16), byte(e.Passkey>>24))
	return packet(PasskeyDisplayNumberCode, p)
}

func decodePasskeyDisplay(p []byte) (Event, error) {
	a, err := decodePeer(p)
	if err != nil {
		return nil, err
	}
	pk, err := getUint32LE(p, 7, 0)
	if err != nil {
		return nil, err
	}
	return PasskeyDisplayRequest{Peer: a, Passkey: pk}, nil
}

// PasskeyDisplayCancel withdraws a displayed passkey.
type PasskeyDisplayCancel struct {
	Peer blecentral.Addr
}

func (PasskeyDisplayCancel) Code() uint8 { return PasskeyDisplayCancelCode }

func (e PasskeyDisplayCancel) Marshal() []byte {
	return packet(PasskeyDisplayCancelCode, putPeer(e.Peer))
}

func decodePasskeyDisplayCancel(p []byte) (Event, error) {
	a, err := decodePeer(p)
	if err != nil {
		return nil, err
	}
	return PasskeyDisplayCancel{Peer: a}, nil
}

// AuthorizationRequest asks whether the peer may access protected attributes.
type AuthorizationRequest struct {
	Peer blecentral.Addr
}

func (AuthorizationRequest) Code() uint8 { return AuthorizationRequestCode }

func (e AuthorizationRequest) Marshal() []byte {
	return packet(AuthorizationRequestCode, putPeer(e.Peer))
}

func decodeAuthorizationRequest(p []byte) (Event, error) {
	a, err := decodePeer(p)
	if err != nil {
		return nil, err
	}
	return AuthorizationRequest{Peer: a}, nil
}

// PairingComplete ends a pairing attempt. Reason is an SMP pairing failed
// reason when Status is non-zero.
type PairingComplete struct {
	Peer   blecentral.Addr
	Status uint8
	Reason uint8
}

func (PairingComplete) Code() uint8 { return PairingCompleteCode }

func (e PairingComplete) Marshal() []byte {
	p := putPeer(e.Peer)
	p = append(p, e.Status, e.Reason)
	return packet(PairingCompleteCode, p)
}

func decodePairingComplete(p []byte) (Event, error) {
	a, err := decodePeer(p)
	if err != nil {
		return nil, err
	}
	e := PairingComplete{Peer: a}
	if e.Status, err = getByte(p, 7, 0xff); err != nil {
		return nil, err
	}
	e.Reason, _ = getByte(p, 8, 0)
	return e, nil
}

// AdvertisingReport is a single advertising or scan response PDU.
type AdvertisingReport struct {
	EventType uint8
	Addr      blecentral.Addr
	RSSI      int8
	Data      []byte
}

func (AdvertisingReport) Code() uint8 { return AdvertisingReportCode }

func (e AdvertisingReport) Marshal() []byte {
	p := []byte{e.EventType, byte(e.Addr.Type)}
	p = putAddr(p, e.Addr.MAC)
	p = append(p, byte(e.RSSI), byte(len(e.Data)))
	p = append(p, e.Data...)
	return packet(AdvertisingReportCode, p)
}

func decodeAdvertisingReport(p []byte) (Event, error) {
	var e AdvertisingReport
	var err error
	if e.EventType, err = getByte(p, 0, 0xff); err != nil {
		return nil, err
	}
	at, err := getByte(p, 1, 0)
	if err != nil {
		return nil, err
	}
	mac, err := getAddr(p, 2)
	if err != nil {
		return nil, err
	}
	e.Addr = blecentral.NewAddr(blecentral.AddrType(at), mac)

	rssi, err := getByte(p, 8, 0)
	if err != nil {
		return nil, err
	}
	e.RSSI = int8(rssi)

	l, err := getByte(p, 9, 0)
	if err != nil {
		return nil, err
	}
	if e.Data, err = getBytes(p, 10, int(l)); err != nil {
		return nil, err
	}
	return e, nil
}

func getUUID(p []byte, i int) (blecentral.UUID, error) {
	u16, err := getUint16LE(p, i, 0)
	if err != nil {
		return blecentral.UUID{}, err
	}
	if u16 != 0 {
		return blecentral.UUID16(u16), nil
	}
	b, err := getBytes(p, i+2, 16)
	if err != nil {
		return blecentral.UUID{}, err
	}
	// a 128-bit value is kept as sent, even when it lies on the base UUID
	u, err := blecentral.UUIDFromLE(b)
	u.U16 = 0
	return u, err
}

func putUUID(p []byte, u blecentral.UUID) []byte {
	p = putUint16LE(p, u.U16)
	if u.U16 != 0 {
		return append(p, make([]byte, 16)...)
	}
	return append(p, u.LE()...)
}

// ServiceQueryResult is one primary service found by discovery.
type ServiceQueryResult struct {
	ConnHandle uint16
	Service    blecentral.Service
}

func (ServiceQueryResult) Code() uint8 { return ServiceQueryResultCode }

func (e ServiceQueryResult) Marshal() []byte {
	p := putUint16LE(nil, e.ConnHandle)
	p = putUint16LE(p, e.Service.StartHandle)
	p = putUint16LE(p, e.Service.EndHandle)
	p = putUUID(p, e.Service.UUID)
	return packet(ServiceQueryResultCode, p)
}

func decodeServiceQueryResult(p []byte) (Event, error) {
	var e ServiceQueryResult
	var err error
	if e.ConnHandle, err = getUint16LE(p, 0, 0); err != nil {
		return nil, err
	}
	if e.Service.StartHandle, err = getUint16LE(p, 2, 0); err != nil {
		return nil, err
	}
	if e.Service.EndHandle, err = getUint16LE(p, 4, 0); err != nil {
		return nil, err
	}
	if e.Service.UUID, err = getUUID(p, 6); err != nil {
		return nil, err
	}
	return e, nil
}

// CharacteristicQueryResult is one characteristic found by discovery.
type CharacteristicQueryResult struct {
	ConnHandle     uint16
	Characteristic blecentral.Characteristic
}

func (CharacteristicQueryResult) Code() uint8 { return CharacteristicQueryResultCode }

func (e CharacteristicQueryResult) Marshal() []byte {
	c := e.Characteristic
	p := putUint16LE(nil, e.ConnHandle)
	p = putUint16LE(p, c.StartHandle)
	p = putUint16LE(p, c.ValueHandle)
	p = putUint16LE(p, c.EndHandle)
	p = append(p, c.Properties)
	p = putUUID(p, c.UUID)
	return packet(CharacteristicQueryResultCode, p)
}

func decodeCharacteristicQueryResult(p []byte) (Event, error) {
	var e CharacteristicQueryResult
	c := &e.Characteristic
	var err error
	if e.ConnHandle, err = getUint16LE(p, 0, 0); err != nil {
		return nil, err
	}
	if c.StartHandle, err = getUint16LE(p, 2, 0); err != nil {
		return nil, err
	}
	if c.ValueHandle, err = getUint16LE(p, 4, 0); err != nil {
		return nil, err
	}
	if c.EndHandle, err = getUint16LE(p, 6, 0); err != nil {
		return nil, err
	}
	if c.Properties, err = getByte(p, 8, 0); err != nil {
		return nil, err
	}
	if c.UUID, err = getUUID(p, 9); err != nil {
		return nil, err
	}
	return e, nil
}

// QueryComplete ends a GATT query.
type QueryComplete struct {
	ConnHandle uint16
	Status     uint8
}

func (QueryComplete) Code() uint8 { return QueryCompleteCode }

func (e QueryComplete) Marshal() []byte {
	p := putUint16LE(nil, e.ConnHandle)
	p = append(p, e.Status)
	return packet(QueryCompleteCode, p)
}

func decodeQueryComplete(p []byte) (Event, error) {
	var e QueryComplete
	var err error
	if e.ConnHandle, err = getUint16LE(p, 0, 0); err != nil {
		return nil, err
	}
	if e.Status, err = getByte(p, 2, 0); err != nil {
		return nil, err
	}
	return e, nil
}
