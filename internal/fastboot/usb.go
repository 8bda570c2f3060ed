package fastboot

import (
	"fmt"

	"github.com/google/gousb"
)

// Fastboot's USB interface descriptor: class, subclass and protocol codes
// that identify a fastboot interface among a device's other interfaces.
const (
	fastbootClass    = 0xFF
	fastbootSubClass = 0x42
	fastbootProtocol = 0x03
)

// IsFastbootInterface reports whether an interface's class/subclass/protocol
// triple identifies it as a fastboot interface. Exposed standalone so
// discovery logic can be tested without USB hardware.
func IsFastbootInterface(class, subClass, protocol int) bool {
	return class == fastbootClass && subClass == fastbootSubClass && protocol == fastbootProtocol
}

// Transport abstracts the two bulk endpoints a fastboot Client talks over,
// letting Client and the download streamer run against a fake in tests.
type Transport interface {
	BulkOut(data []byte) error
	BulkIn(maxLen int) ([]byte, error)
	MaxOutPacketSize() int
	MaxInPacketSize() int
	Close() error
}

// DeviceSummary describes one USB device exposing a fastboot interface, as
// surfaced by `flashkit devices`.
type DeviceSummary struct {
	VendorID  gousb.ID
	ProductID gousb.ID
	Serial    string
	Bus       int
	Address   int
}

// newContext is a package variable so the libusb context constructor can be
// swapped, mirroring the teacher's ExecCommand var-swap idiom. No test in
// this package replaces it.
var newContext = gousb.NewContext

// Devices lists every currently attached USB device exposing a fastboot
// interface.
func Devices() ([]DeviceSummary, error) {
	ctx := newContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, _, _, ok := findFastbootInterface(desc)
		return ok
	})
	if err != nil {
		return nil, &TransferError{Err: err}
	}
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	summaries := make([]DeviceSummary, 0, len(devs))
	for _, d := range devs {
		serial, _ := d.SerialNumber()
		summaries = append(summaries, DeviceSummary{
			VendorID:  d.Desc.Vendor,
			ProductID: d.Desc.Product,
			Serial:    serial,
			Bus:       d.Desc.Bus,
			Address:   d.Desc.Address,
		})
	}
	return summaries, nil
}

// findFastbootInterface locates the first interface/alt-setting/config
// triple on desc whose class/subclass/protocol identify it as fastboot.
func findFastbootInterface(desc *gousb.DeviceDesc) (cfgNum, ifaceNum, altNum int, ok bool) {
	for cn, cfg := range desc.Configs {
		for _, iface := range cfg.Interfaces {
			for _, alt := range iface.AltSettings {
				if IsFastbootInterface(int(alt.Class), int(alt.SubClass), int(alt.Protocol)) {
					return cn, iface.Number, alt.Alternate, true
				}
			}
		}
	}
	return 0, 0, 0, false
}

// bulkEndpoints finds, within one alt setting, the address and max packet
// size of a bulk-out and a bulk-in endpoint. The number of bulk endpoints is
// not checked; if a direction has several, which one is returned is not
// defined.
func bulkEndpoints(desc *gousb.DeviceDesc, cfgNum, ifaceNum, altNum int) (outAddr, inAddr int, outMax, inMax int, ok bool) {
	cfg, exists := desc.Configs[cfgNum]
	if !exists {
		return 0, 0, 0, 0, false
	}
	for _, iface := range cfg.Interfaces {
		if iface.Number != ifaceNum {
			continue
		}
		for _, alt := range iface.AltSettings {
			if alt.Alternate != altNum {
				continue
			}
			var foundOut, foundIn bool
			for addr, ep := range alt.Endpoints {
				if ep.TransferType != gousb.TransferTypeBulk {
					continue
				}
				switch ep.Direction {
				case gousb.EndpointDirectionOut:
					outAddr, outMax, foundOut = int(addr), ep.MaxPacketSize, true
				case gousb.EndpointDirectionIn:
					inAddr, inMax, foundIn = int(addr), ep.MaxPacketSize, true
				}
			}
			return outAddr, inAddr, outMax, inMax, foundOut && foundIn
		}
	}
	return 0, 0, 0, 0, false
}

// usbTransport implements Transport over github.com/google/gousb.
type usbTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
}

// Open claims the fastboot interface of the first attached device exposing
// one and returns a ready Client. Callers must Close the returned Client
// when done to release the USB interface.
func Open() (*Client, error) {
	ctx := newContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		_, _, _, ok := findFastbootInterface(desc)
		return ok
	})
	if err != nil {
		ctx.Close()
		return nil, &TransferError{Err: err}
	}
	if len(devs) == 0 {
		ctx.Close()
		return nil, ErrMissingInterface
	}
	for _, extra := range devs[1:] {
		extra.Close()
	}
	dev := devs[0]

	cfgNum, ifaceNum, altNum, ok := findFastbootInterface(dev.Desc)
	if !ok {
		dev.Close()
		ctx.Close()
		return nil, ErrMissingInterface
	}

	cfg, err := dev.Config(cfgNum)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, &TransferError{Err: fmt.Errorf("select config %d: %w", cfgNum, err)}
	}
	intf, err := cfg.Interface(ifaceNum, altNum)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, &TransferError{Err: fmt.Errorf("claim interface %d: %w", ifaceNum, err)}
	}

	outAddr, inAddr, outMax, inMax, ok := bulkEndpoints(dev.Desc, cfgNum, ifaceNum, altNum)
	if !ok {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, ErrMissingEndpoints
	}

	outEP, err := intf.OutEndpoint(outAddr)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, &TransferError{Err: err}
	}
	inEP, err := intf.InEndpoint(inAddr)
	if err != nil {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, &TransferError{Err: err}
	}

	if outEP.Desc.MaxPacketSize != outMax || inEP.Desc.MaxPacketSize != inMax {
		intf.Close()
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, &TransferError{Err: fmt.Errorf("endpoint max packet size mismatch: descriptor reported out=%d/in=%d, claimed endpoint reports out=%d/in=%d", outMax, inMax, outEP.Desc.MaxPacketSize, inEP.Desc.MaxPacketSize)}
	}

	t := &usbTransport{ctx: ctx, dev: dev, intf: intf, out: outEP, in: inEP}
	return NewClient(t), nil
}

func (t *usbTransport) BulkOut(data []byte) error {
	_, err := t.out.Write(data)
	if err != nil {
		return &TransferError{Err: err}
	}
	return nil
}

func (t *usbTransport) BulkIn(maxLen int) ([]byte, error) {
	buf := make([]byte, maxLen)
	n, err := t.in.Read(buf)
	if err != nil {
		return nil, &TransferError{Err: err}
	}
	return buf[:n], nil
}

func (t *usbTransport) MaxOutPacketSize() int { return t.out.Desc.MaxPacketSize }
func (t *usbTransport) MaxInPacketSize() int  { return t.in.Desc.MaxPacketSize }

func (t *usbTransport) Close() error {
	t.intf.Close()
	t.dev.Close()
	t.ctx.Close()
	return nil
}
