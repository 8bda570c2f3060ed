package fastboot

import (
	"errors"
	"fmt"
)

// ErrMissingInterface is returned when a USB device has no interface whose
// class/subclass/protocol triple matches the fastboot descriptor.
var ErrMissingInterface = errors.New("fastboot: no matching interface on device")

// ErrMissingEndpoints is returned when the claimed fastboot alternate
// setting lacks a bulk-out or a bulk-in endpoint. Other alternate settings
// of the interface are not searched.
var ErrMissingEndpoints = errors.New("fastboot: interface has no usable bulk endpoints")

// ErrUnexpectedReply is returned when a response of a kind not valid in the
// current exchange is received (a DATA outside of download, or an OKAY
// during the download discovery loop).
var ErrUnexpectedReply = errors.New("fastboot: unexpected reply")

// TransferError wraps a failure in the underlying USB transport.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string { return "fastboot: usb transfer: " + e.Err.Error() }
func (e *TransferError) Unwrap() error { return e.Err }

// FastbootFailedError reports a device-reported FAIL response. The client
// remains usable after this error; it is fatal only to the command that
// produced it.
type FastbootFailedError struct {
	Reason string
}

func (e *FastbootFailedError) Error() string {
	return "fastboot: device reported failure: " + e.Reason
}

// ProtocolViolationError reports a malformed or out-of-sequence response:
// an unknown prefix, a non-hex DATA payload, or a response variant that is
// not valid at the point it was received.
type ProtocolViolationError struct {
	Reason string
}

func (e *ProtocolViolationError) Error() string {
	return "fastboot: protocol violation: " + e.Reason
}

// IncorrectDataLengthError reports that a download producer supplied a
// total byte count different from the size negotiated with the device.
type IncorrectDataLengthError struct {
	Expected uint32
	Actual   uint32
}

func (e *IncorrectDataLengthError) Error() string {
	return fmt.Sprintf("fastboot: incorrect data length: expected %d, got %d", e.Expected, e.Actual)
}
