/*Package labjack speaks the low-level USB protocol of the LabJack U3 DAQ.

Only the sliver of the protocol needed to raise and lower one digital
line is implemented; the camera's external trigger input is wired to
FIO4.  Pulse widths are timed on the host, which is plenty for trigger
blips but leaves sub-millisecond widths at the mercy of the scheduler.
*/
package labjack

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/gousb"
)

const (
	vendorID  = 0x0cd5
	productID = 0x0003

	// extended command Feedback IOTypes, U3 datasheet section 5.2.5
	typeBitDirWrite   = 13
	typeBitStateWrite = 29

	// fioTrigger is the FIO line wired to the camera's external trigger input
	fioTrigger = 4
)

// ErrNoDevice is generated when no U3 is attached to the host.
var ErrNoDevice = errors.New("labjack: no U3 found on the USB bus")

// U3 is a LabJack U3 reached over USB.  The zero value is usable; the
// device is opened on the first Pulse and held until Close.
type U3 struct {
	sync.Mutex

	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface
	done func()
	out  *gousb.OutEndpoint
	in   *gousb.InEndpoint
	echo byte
}

// Open claims the first U3 on the bus.  Open is a no-op when the
// device is already held.
func (u *U3) Open() error {
	u.Lock()
	defer u.Unlock()
	return u.open()
}

func (u *U3) open() error {
	if u.dev != nil {
		return nil
	}
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(vendorID, productID)
	if err != nil {
		ctx.Close()
		return err
	}
	if dev == nil {
		ctx.Close()
		return ErrNoDevice
	}
	dev.SetAutoDetach(true)
	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return err
	}
	out, err := intf.OutEndpoint(1)
	if err == nil {
		u.in, err = intf.InEndpoint(2)
	}
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return err
	}
	u.ctx = ctx
	u.dev = dev
	u.intf = intf
	u.done = done
	u.out = out
	return nil
}

// Close releases the device.  Closing an unopened U3 is not an error.
func (u *U3) Close() error {
	u.Lock()
	defer u.Unlock()
	if u.dev == nil {
		return nil
	}
	u.done()
	err := u.dev.Close()
	u.ctx.Close()
	u.ctx = nil
	u.dev = nil
	u.intf = nil
	u.done = nil
	u.out = nil
	u.in = nil
	return err
}

// Pulse drives FIO4 high, sleeps for width, and drives it low again.
// The direction write in the rising edge makes the line an output even
// on a factory-fresh U3, whose lines power up as inputs.
func (u *U3) Pulse(width time.Duration) error {
	u.Lock()
	defer u.Unlock()
	err := u.open()
	if err != nil {
		return err
	}
	u.echo++
	up := feedback(u.echo,
		typeBitDirWrite, fioTrigger|0x80,
		typeBitStateWrite, fioTrigger|0x80)
	_, err = u.transact(up)
	if err != nil {
		return err
	}
	if width > 0 {
		time.Sleep(width)
	}
	u.echo++
	down := feedback(u.echo, typeBitStateWrite, fioTrigger)
	_, err = u.transact(down)
	return err
}

func (u *U3) transact(cmd []byte) ([]byte, error) {
	_, err := u.out.Write(cmd)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 64)
	n, err := u.in.Read(buf)
	if err != nil {
		return nil, err
	}
	resp := buf[:n]
	if len(resp) < 7 {
		return resp, fmt.Errorf("labjack: truncated response, %d bytes", n)
	}
	if resp[6] != 0 {
		return resp, fmt.Errorf("labjack: device errorcode %d", resp[6])
	}
	return resp, nil
}

/* the above talks to the hardware, the below builds its packets */

// feedback frames IOType/data pairs as an extended Feedback command.
// Packets are padded to an even length and carry both checksums.
func feedback(echo byte, io ...byte) []byte {
	if (len(io)+7)%2 != 0 {
		io = append(io, 0)
	}
	p := make([]byte, 6, 7+len(io))
	p[1] = 0xF8
	p[2] = byte((1 + len(io)) / 2)
	p[3] = 0x00
	p = append(p, echo)
	p = append(p, io...)
	c16 := checksum16(p[6:])
	p[4] = byte(c16 & 0xFF)
	p[5] = byte(c16 >> 8)
	p[0] = checksum8(p[1:6])
	return p
}

// checksum8 folds a 16-bit sum into one byte, the U3's header checksum.
func checksum8(b []byte) byte {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	sum = (sum / 256) + (sum % 256)
	sum = (sum / 256) + (sum % 256)
	return byte(sum)
}

func checksum16(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}
