package evt

import "fmt"

var pairingFailedReason = []string{
	"reserved",
	"passkey entry failed",
	"oob not available",
	"authentication requirements",
	"confirm value failed",
	"pairing not supported",
	"encryption key size",
	"command not supported",
	"unspecified reason",
	"repeated attempts",
	"invalid parameters",
	"dhkey check failed",
	"numeric comparison failed",
	"BR/EDR pairing in progress",
	"Cross-transport Key Derivation/Generation not allowed",
}

// PairingFailedReason describes an SMP pairing failed reason code.
func PairingFailedReason(r uint8) string {
	if int(r) < len(pairingFailedReason) {
		return pairingFailedReason[r]
	}
	return fmt.Sprintf("unknown reason 0x%02x", r)
}
