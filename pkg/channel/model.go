package channel

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrNotConfigured = errors.New("channel: not configured")
	ErrShortWrite    = errors.New("channel: short write")
	ErrUnknownDriver = errors.New("channel: unknown serial driver")
	ErrBadFrame      = errors.New("channel: bad frame format")
)

// Channel is a half-duplex serial link to a meter.
type Channel interface {
	// Configure (re)opens the link with the given line settings and discards stale input.
	// Calling it again with the same settings only clears the input.
	Configure(cfg LineConfig) error
	Write(p []byte) (int, error)
	// WriteLine sends text followed by CRLF.
	WriteLine(text string) error
	// ReadUpTo returns what arrived before max bytes were collected or timeout elapsed.
	ReadUpTo(max int, timeout time.Duration) ([]byte, error)
	Clear() error
	Close() error
}

// FrontEnd switches the optical receiver's front end, which must be off while
// the optical head talks to a meter.
type FrontEnd interface {
	Enable() error
	Disable() error
}

type LineConfig struct {
	BaudRate uint
	Frame    FrameFormat
}

type Driver string

const (
	DriverJacobsa  Driver = "jacobsa"
	DriverGoburrow Driver = "goburrow"
)

// opener opens the underlying port with reads bounded by pollInterval.
type opener func(device string, cfg LineConfig) (io.ReadWriteCloser, error)

// readDeadliner is implemented by ports backed by a pollable file.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type SerialChannel struct {
	device string
	driver Driver
	log    logrus.FieldLogger

	open opener
	// idle reports whether a read error only means no data arrived yet.
	idle   func(error) bool
	settle time.Duration
	// poll is the longest a single Read blocks on a port without read deadlines.
	poll time.Duration

	mu      sync.Mutex
	port    io.ReadWriteCloser
	current LineConfig
}
