package channel

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	goserial "github.com/goburrow/serial"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

const (
	// pollInterval bounds a single blocking read on ports without read deadlines.
	pollInterval = 100 * time.Millisecond
	// openSettle lets the line driver come up before the first byte is sent.
	openSettle = 50 * time.Millisecond
	drainLimit = 4096
)

// NewSerialChannel creates a channel on a serial device. The port is opened by Configure.
func NewSerialChannel(device string, driver Driver, log logrus.FieldLogger) (*SerialChannel, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &SerialChannel{
		device: device,
		driver: driver,
		log:    log.WithFields(logrus.Fields{"device": device, "driver": string(driver)}),
		settle: openSettle,
		poll:   pollInterval,
	}

	switch driver {
	case DriverJacobsa:
		c.open = openJacobsa
	case DriverGoburrow:
		c.open = openGoburrow
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	c.idle = isIdle
	return c, nil
}

func (c *SerialChannel) Device() string {
	return c.device
}

func (c *SerialChannel) Configure(cfg LineConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port != nil && c.current == cfg {
		return c.drain()
	}

	c.closePort()
	port, err := c.open(c.device, cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", c.device, err)
	}
	c.port = port
	c.current = cfg
	c.log.WithFields(logrus.Fields{
		"baud":  cfg.BaudRate,
		"frame": cfg.Frame.String(),
	}).Debug("Serial port configured")

	time.Sleep(c.settle)
	return c.drain()
}

func (c *SerialChannel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return 0, ErrNotConfigured
	}
	n, err := c.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("write to %s: %w", c.device, err)
	}
	if n != len(p) {
		return n, fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(p))
	}
	return n, nil
}

func (c *SerialChannel) WriteLine(text string) error {
	_, err := c.Write([]byte(text + "\r\n"))
	return err
}

func (c *SerialChannel) ReadUpTo(max int, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil, ErrNotConfigured
	}
	if max <= 0 {
		return nil, nil
	}

	out := make([]byte, 0, max)
	buf := make([]byte, max)
	deadline := time.Now().Add(timeout)
	for len(out) < max && c.boundRead(deadline) {
		n, err := c.port.Read(buf[:max-len(out)])
		out = append(out, buf[:n]...)
		if err != nil && !c.idle(err) {
			return out, fmt.Errorf("read from %s: %w", c.device, err)
		}
		runtime.Gosched()
	}
	return out, nil
}

// boundRead prepares the next Read so it returns by deadline. Ports with read
// deadlines get one of at most poll. Other ports block for up to poll, so no
// Read is started when less than that remains.
func (c *SerialChannel) boundRead(deadline time.Time) bool {
	now := time.Now()
	if !now.Before(deadline) {
		return false
	}
	until := now.Add(c.poll)
	if until.After(deadline) {
		until = deadline
	}
	if c.armRead(until) {
		return true
	}
	return deadline.Sub(now) >= c.poll
}

// armRead sets the read deadline on ports that support one.
func (c *SerialChannel) armRead(until time.Time) bool {
	p, ok := c.port.(readDeadliner)
	return ok && p.SetReadDeadline(until) == nil
}

func (c *SerialChannel) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return ErrNotConfigured
	}
	return c.drain()
}

func (c *SerialChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closePort()
}

// drain reads and discards input until the line goes quiet.
func (c *SerialChannel) drain() error {
	buf := make([]byte, 256)
	discarded := 0
	for discarded < drainLimit {
		c.armRead(time.Now().Add(c.poll))
		n, err := c.port.Read(buf)
		discarded += n
		if err != nil && !c.idle(err) {
			return fmt.Errorf("clear %s: %w", c.device, err)
		}
		if n == 0 {
			break
		}
	}
	if discarded > 0 {
		c.log.WithField("bytes", discarded).Debug("Discarded stale input")
	}
	return nil
}

func (c *SerialChannel) closePort() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	c.current = LineConfig{}
	if err != nil {
		return fmt.Errorf("close %s: %w", c.device, err)
	}
	c.log.Debug("Serial port closed")
	return nil
}

func isIdle(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, goserial.ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded)
}

func openJacobsa(device string, cfg LineConfig) (io.ReadWriteCloser, error) {
	parity := serial.PARITY_NONE
	switch cfg.Frame.Parity {
	case ParityEven:
		parity = serial.PARITY_EVEN
	case ParityOdd:
		parity = serial.PARITY_ODD
	}

	options := serial.OpenOptions{
		PortName:              device,
		BaudRate:              cfg.BaudRate,
		DataBits:              uint(cfg.Frame.DataBits),
		StopBits:              uint(cfg.Frame.StopBits),
		ParityMode:            parity,
		MinimumReadSize:       0,
		InterCharacterTimeout: uint(pollInterval / time.Millisecond),
	}
	return serial.Open(options)
}

func openGoburrow(device string, cfg LineConfig) (io.ReadWriteCloser, error) {
	return goserial.Open(&goserial.Config{
		Address:  device,
		BaudRate: int(cfg.BaudRate),
		DataBits: cfg.Frame.DataBits,
		StopBits: cfg.Frame.StopBits,
		Parity:   string(rune(cfg.Frame.Parity)),
		Timeout:  pollInterval,
	})
}
