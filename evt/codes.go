package evt

// Packet codes delivered by the stack.
const (
	DisconnectionCompleteCode = 0x05
	LEMetaCode                = 0x3E
	StackStateCode            = 0x60

	QueryCompleteCode             = 0xA0
	ServiceQueryResultCode        = 0xA1
	CharacteristicQueryResultCode = 0xA2

	PasskeyDisplayNumberCode = 0xD0
	PasskeyDisplayCancelCode = 0xD1
	PasskeyInputNumberCode   = 0xD2
	AuthorizationRequestCode = 0xD3
	PairingCompleteCode      = 0xD4

	AdvertisingReportCode = 0xE2
)

// LE meta subevents.
const (
	LEConnectionCompleteSubCode = 0x01
)

// Stack states.
const (
	StateOff          = 0x00
	StateInitializing = 0x01
	StateWorking      = 0x02
	StateHalting      = 0x03
)
