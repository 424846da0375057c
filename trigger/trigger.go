/*Package trigger generates TTL pulses that fire externally-triggered
camera exposures.

Two implementations exist: Box, a bench pulse generator that speaks a
one-line ASCII protocol over RS-232 or a terminal server, and
labjack.U3, which bit-bangs a DAQ line over USB.  Both satisfy Pulser.
*/
package trigger

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
	"github.jpl.nasa.gov/bdube/goixon/comm"
)

// Pulser emits a single TTL high pulse of the given width.  Zero width
// requests the shortest pulse the hardware can make; in external
// exposure trigger mode the width sets the exposure time itself.
type Pulser interface {
	Pulse(width time.Duration) error
}

// Box is a pulse generator that answers "FIRE <width in microseconds>"
// with "OK", or "ERR <reason>" when it cannot comply.  The box shapes
// the pulse with its own timer, so widths are honored even over a
// jittery network link.
type Box struct {
	*comm.RemoteDevice
}

var _ Pulser = (*Box)(nil)

// NewTCPBox returns a Box reached through a terminal server at host:port.
func NewTCPBox(addr string) *Box {
	return &Box{RemoteDevice: comm.NewTCPDevice(addr, comm.DefaultTimeout)}
}

// NewSerialBox returns a Box on a local RS-232 port.
func NewSerialBox(name string, baud int) *Box {
	return &Box{RemoteDevice: comm.NewSerialDevice(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: comm.DefaultTimeout})}
}

// Pulse emits one TTL pulse, connecting first if need be.
func (b *Box) Pulse(width time.Duration) error {
	err := b.Open()
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("FIRE %d", width.Microseconds())
	resp, err := b.Txn([]byte(cmd))
	if err != nil {
		return err
	}
	if s := string(resp); s != "OK" {
		return fmt.Errorf("pulse box replied %s to %s", s, cmd)
	}
	return nil
}
