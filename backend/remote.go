package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.viam.com/rdk/logging"
)

const (
	// DefaultAddress is where the simulator's remote API listens by default.
	DefaultAddress  = "tcp://127.0.0.1:19999"
	defaultBaudrate = 115200
	dialTimeout     = 5 * time.Second
)

type deadliner interface {
	SetDeadline(t time.Time) error
}

type readTimeouter interface {
	SetReadTimeout(t time.Duration) error
}

// RemoteClient speaks the newline-delimited JSON protocol over a byte stream.
type RemoteClient struct {
	mu     sync.Mutex
	conn   io.ReadWriteCloser
	enc    *json.Encoder
	dec    *json.Decoder
	nextID uint64
	closed bool
	logger logging.Logger
}

// Dial connects to a backend. Supported targets are tcp://host:port and
// serial:///dev/ttyUSB0?baud=115200.
func Dial(ctx context.Context, target string, logger logging.Logger) (*RemoteClient, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid backend address %q", target)
	}

	var conn io.ReadWriteCloser
	switch u.Scheme {
	case "tcp":
		d := net.Dialer{Timeout: dialTimeout}
		conn, err = d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to connect to backend at %s", u.Host)
		}
	case "serial":
		baud := defaultBaudrate
		if b := u.Query().Get("baud"); b != "" {
			baud, err = strconv.Atoi(b)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid baud rate %q", b)
			}
		}
		mode := &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
		port, err := serial.Open(u.Path, mode)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open serial port %s", u.Path)
		}
		conn = port
	default:
		return nil, errors.Errorf("unsupported backend scheme %q", u.Scheme)
	}

	logger.Infof("Connected to backend at %s", target)
	return NewRemoteClient(conn, logger), nil
}

// NewRemoteClient wraps an established stream.
func NewRemoteClient(conn io.ReadWriteCloser, logger logging.Logger) *RemoteClient {
	return &RemoteClient{
		conn:   conn,
		enc:    json.NewEncoder(conn),
		dec:    json.NewDecoder(bufio.NewReader(conn)),
		logger: logger,
	}
}

func (c *RemoteClient) setDeadline(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	switch conn := c.conn.(type) {
	case deadliner:
		if !ok {
			deadline = time.Time{}
		}
		_ = conn.SetDeadline(deadline)
	case readTimeouter:
		timeout := serial.NoTimeout
		if ok {
			// serial treats a negative timeout as blocking forever
			timeout = time.Until(deadline)
			if timeout <= 0 {
				return context.DeadlineExceeded
			}
		}
		_ = conn.SetReadTimeout(timeout)
	}
	return nil
}

// breakLocked closes a stream whose framing can no longer be trusted: the decoder keeps its
// first read error, so later calls answer ErrClosed. Must be called with mu held.
func (c *RemoteClient) breakLocked(err error) {
	c.logger.Warnf("Closing backend session after transport error: %v", err)
	c.closed = true
	_ = c.conn.Close()
}

func (c *RemoteClient) roundTrip(ctx context.Context, req *request) (*response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	if err := c.setDeadline(ctx); err != nil {
		return nil, err
	}
	c.nextID++
	req.ID = c.nextID

	if err := c.enc.Encode(req); err != nil {
		c.breakLocked(err)
		return nil, errors.Wrapf(err, "failed to send %s request", req.Op)
	}
	if !req.expectsResponse() {
		return nil, nil
	}

	var resp response
	if err := c.dec.Decode(&resp); err != nil {
		c.breakLocked(err)
		return nil, errors.Wrapf(err, "failed to read %s response", req.Op)
	}
	if resp.ID != req.ID {
		err := errors.Errorf("response id %d does not match request %d", resp.ID, req.ID)
		c.breakLocked(err)
		return nil, err
	}
	if err := errorFromCode(resp.Error); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *RemoteClient) GetFloatSignal(ctx context.Context, name string) (float64, error) {
	resp, err := c.roundTrip(ctx, &request{Op: opGetFloat, Name: name})
	if err != nil {
		return 0, err
	}
	return resp.Value, nil
}

func (c *RemoteClient) WaitFloatSignal(ctx context.Context, name string) (float64, error) {
	resp, err := c.roundTrip(ctx, &request{Op: opWaitFloat, Name: name})
	if err != nil {
		return 0, err
	}
	return resp.Value, nil
}

func (c *RemoteClient) GetIntegerSignal(ctx context.Context, name string) (int, error) {
	resp, err := c.roundTrip(ctx, &request{Op: opGetInt, Name: name})
	if err != nil {
		return 0, err
	}
	return resp.Int, nil
}

func (c *RemoteClient) SetFloatSignal(ctx context.Context, name string, value float64, ack bool) error {
	_, err := c.roundTrip(ctx, &request{Op: opSetFloat, Name: name, Value: value, Ack: ack})
	return err
}

func (c *RemoteClient) SetIntegerSignal(ctx context.Context, name string, value int, ack bool) error {
	_, err := c.roundTrip(ctx, &request{Op: opSetInt, Name: name, Int: value, Ack: ack})
	return err
}

func (c *RemoteClient) ObjectHandle(ctx context.Context, name string) (int, error) {
	resp, err := c.roundTrip(ctx, &request{Op: opHandle, Name: name})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to resolve handle for %s", name)
	}
	return resp.Int, nil
}

func (c *RemoteClient) ReadForceSensor(ctx context.Context, handle int) (ForceReading, error) {
	resp, err := c.roundTrip(ctx, &request{Op: opForce, Handle: handle})
	if err != nil {
		return ForceReading{}, err
	}
	return ForceReading{
		State:  resp.Int,
		Force:  fromArray(resp.Force),
		Torque: fromArray(resp.Torque),
	}, nil
}

func (c *RemoteClient) ObjectPosition(ctx context.Context, handle, relativeTo int) (r3.Vector, error) {
	resp, err := c.roundTrip(ctx, &request{Op: opPosition, Handle: handle, RelativeTo: relativeTo})
	if err != nil {
		return r3.Vector{}, err
	}
	return fromArray(resp.Vector), nil
}

// Close closes the underlying stream. It is safe to call more than once.
func (c *RemoteClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
