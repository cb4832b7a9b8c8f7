package engine

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/channel"
	"github.com/NotCoffee418/optical_meter_reader/pkg/metrics"
)

// Step failures. They are recorded on the capture's step reports and never
// abort an exchange.
var (
	ErrChannelWriteFailure = errors.New("channel write failure")
	ErrResponseTimeout     = errors.New("response timeout")
	ErrUnknownChannel      = errors.New("unknown channel")
)

type ChannelID int

const (
	ChannelOptical ChannelID = iota
	ChannelInfrared
)

func (c ChannelID) String() string {
	switch c {
	case ChannelOptical:
		return "optical"
	case ChannelInfrared:
		return "infrared"
	}
	return "unknown"
}

// Sleeper provides the protocol delays. Tests substitute one that only records.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

type Options struct {
	FrontEnd channel.FrontEnd
	Sleeper  Sleeper
	Logger   logrus.FieldLogger
	Metrics  *metrics.ExchangeMetrics
	Frame    channel.FrameFormat
}

// Engine drives the scripted message exchange for each meter variant.
// It is not safe for concurrent use: a channel carries one exchange at a time
// and callers serialize reads.
type Engine struct {
	optical  channel.Channel
	infrared channel.Channel
	frontEnd channel.FrontEnd
	sleeper  Sleeper
	log      logrus.FieldLogger
	metrics  *metrics.ExchangeMetrics
	frame    channel.FrameFormat
}
