/*Package comm provides connection plumbing for bench hardware that speaks
terminated ASCII over TCP or a local serial port.

Types embedding RemoteDevice get Open, Close, Send, Recv, and Txn for free
and only add the command vocabulary of their instrument.  A minimal example
for a pulse generator that replies "OK" to a fire command:

	type PulseGen struct {
		*comm.RemoteDevice
	}

	func (pg PulseGen) Fire(widthUS int) error {
		err := pg.Open()
		if err != nil {
			return err
		}
		resp, err := pg.Txn([]byte(fmt.Sprintf("FIRE %d", widthUS)))
		if err != nil {
			return err
		}
		if string(resp) != "OK" {
			return fmt.Errorf("pulse generator replied %s", resp)
		}
		return nil
	}

The device is concurrent-safe; Txn holds the device lock across the
send and the receive so replies stay paired with their commands.
*/
package comm

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	"github.jpl.nasa.gov/bdube/goixon/util"
)

// DefaultTimeout bounds connect, send, and receive when the caller does
// not provide a timeout of their own.
const DefaultTimeout = 3 * time.Second

var (
	// ErrNotConnected is generated when Send or Recv is called before Open.
	ErrNotConnected = errors.New("not connected to remote")

	// ErrTerminatorNotFound is generated when the remote closes the
	// connection mid-reply, before the termination byte arrives.
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// Sender has a Send method that writes a terminated byte slice.
type Sender interface {
	Send([]byte) error
}

// Recver has a Recv method that reads up to the termination byte.
type Recver interface {
	Recv() ([]byte, error)
}

// SendRecver can send and receive, and provides a locked transaction
// that pairs one command with one reply.
type SendRecver interface {
	Sender
	Recver

	Txn([]byte) ([]byte, error)
}

// A Communicator can Open, Send, Recv, Txn and Close.
type Communicator interface {
	io.Closer
	SendRecver

	Open() error
}

/*RemoteDevice reaches an instrument over TCP or a serial port and
implements Communicator.

A non-nil Serial field selects the serial path; otherwise Addr is dialed
as host:port.  TxTerm and RxTerm frame commands and replies and may be
changed before the first transaction if the instrument does not use
carriage returns.
*/
type RemoteDevice struct {
	sync.Mutex

	// Addr is host:port for TCP devices and the port name for serial ones.
	Addr string

	// Serial holds the port configuration for serial devices, nil for TCP.
	Serial *serial.Config

	// Timeout bounds connect, send, and receive on TCP connections.
	Timeout time.Duration

	// TxTerm and RxTerm are the transmit and receive termination bytes.
	TxTerm byte
	RxTerm byte

	conn io.ReadWriteCloser
	rdr  *bufio.Reader
}

var _ Communicator = (*RemoteDevice)(nil)

// NewTCPDevice returns a device reached at host:port over TCP.
func NewTCPDevice(addr string, timeout time.Duration) *RemoteDevice {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &RemoteDevice{
		Addr:    addr,
		Timeout: timeout,
		TxTerm:  '\r',
		RxTerm:  '\r'}
}

// NewSerialDevice returns a device on a local serial port.
func NewSerialDevice(conf *serial.Config) *RemoteDevice {
	return &RemoteDevice{
		Addr:   conf.Name,
		Serial: conf,
		TxTerm: '\r',
		RxTerm: '\r'}
}

// Open dials the remote.  Refused connections are retried with an
// exponential backoff; terminal servers for serial gear drop their
// listener briefly between client sessions, so an immediate redial
// after Close tends to be refused once or twice before it lands.
// Open is a no-op when the device is already connected.
func (rd *RemoteDevice) Open() error {
	rd.Lock()
	defer rd.Unlock()
	if rd.conn != nil {
		return nil
	}
	op := func() error {
		err := rd.dial()
		if err != nil && !strings.Contains(strings.ToLower(err.Error()), "refused") {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock})
}

func (rd *RemoteDevice) dial() error {
	var (
		conn io.ReadWriteCloser
		err  error
	)
	if rd.Serial != nil {
		conn, err = serial.OpenPort(rd.Serial)
	} else {
		timeout := rd.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		conn, err = util.TCPSetup(rd.Addr, timeout)
	}
	if err != nil {
		return err
	}
	rd.conn = conn
	rd.rdr = bufio.NewReader(conn)
	return nil
}

// Close hangs up.  Closing a device that is not connected is not an error.
func (rd *RemoteDevice) Close() error {
	rd.Lock()
	defer rd.Unlock()
	if rd.conn == nil {
		return nil
	}
	err := rd.conn.Close()
	rd.conn = nil
	rd.rdr = nil
	return err
}

// Send writes data to the remote, appending the Tx terminator.
func (rd *RemoteDevice) Send(b []byte) error {
	rd.Lock()
	defer rd.Unlock()
	return rd.send(b)
}

// Recv reads a reply from the remote with the Rx terminator stripped.
func (rd *RemoteDevice) Recv() ([]byte, error) {
	rd.Lock()
	defer rd.Unlock()
	return rd.recv()
}

// Txn sends a command and returns the reply, holding the device lock
// across both halves so concurrent callers cannot interleave.
func (rd *RemoteDevice) Txn(b []byte) ([]byte, error) {
	rd.Lock()
	defer rd.Unlock()
	err := rd.send(b)
	if err != nil {
		return nil, err
	}
	return rd.recv()
}

/* the above is the exported, locked surface; the below does the I/O */

func (rd *RemoteDevice) send(b []byte) error {
	if rd.conn == nil {
		return ErrNotConnected
	}
	if c, ok := rd.conn.(net.Conn); ok && rd.Timeout > 0 {
		c.SetWriteDeadline(time.Now().Add(rd.Timeout))
	}
	b = append(b, rd.TxTerm)
	_, err := rd.conn.Write(b)
	return err
}

func (rd *RemoteDevice) recv() ([]byte, error) {
	if rd.conn == nil {
		return nil, ErrNotConnected
	}
	if c, ok := rd.conn.(net.Conn); ok && rd.Timeout > 0 {
		c.SetReadDeadline(time.Now().Add(rd.Timeout))
	}
	buf, err := rd.rdr.ReadBytes(rd.RxTerm)
	if err != nil {
		if errors.Is(err, io.EOF) && len(buf) > 0 {
			return buf, ErrTerminatorNotFound
		}
		return nil, err
	}
	return buf[:len(buf)-1], nil
}
