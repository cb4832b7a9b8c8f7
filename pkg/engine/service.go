package engine

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/catalog"
	"github.com/NotCoffee418/optical_meter_reader/pkg/channel"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

// New creates an engine on the optical and infrared channels.
// Zero-valued options fall back to a no-op front end, real sleeps, 8N1 framing
// and the standard logger.
func New(optical, infrared channel.Channel, opts Options) *Engine {
	e := &Engine{
		optical:  optical,
		infrared: infrared,
		frontEnd: opts.FrontEnd,
		sleeper:  opts.Sleeper,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		frame:    opts.Frame,
	}
	if e.frontEnd == nil {
		e.frontEnd = channel.NopFrontEnd{}
	}
	if e.sleeper == nil {
		e.sleeper = realSleeper{}
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	if e.frame == (channel.FrameFormat{}) {
		e.frame = channel.Frame8N1
	}
	return e
}

// Read runs the exchange script of a variant and returns the capture.
// Channel problems are reported through the capture's validity and step reports;
// the only error is types.ErrUnsupportedVariant.
func (e *Engine) Read(variant types.MeterVariant) (types.RawCapture, error) {
	r, ok := routeFor(variant)
	if !ok {
		return types.RawCapture{Variant: variant}, fmt.Errorf("%w: %s", types.ErrUnsupportedVariant, variant)
	}

	log := e.log.WithFields(logrus.Fields{"variant": variant.String(), "channel": r.channel.String()})
	log.Info("Starting meter read")
	start := time.Now()

	x, err := e.begin(variant, r.channel, r.baud, log)
	var capture types.RawCapture
	if err != nil {
		log.WithError(err).Error("Failed to configure channel")
		capture = types.NewRawCapture(variant, false, nil, nil)
	} else {
		if r.frontEnd {
			e.setFrontEnd(false, log)
		}
		capture = r.run(e, x)
		if r.frontEnd {
			e.setFrontEnd(true, log)
		}
	}

	took := time.Since(start)
	e.metrics.ObserveExchange(variant.String(), capture.Valid, capture.Length(), took)
	fields := logrus.Fields{"bytes": capture.Length(), "took": took.Round(time.Millisecond)}
	if capture.Valid {
		log.WithFields(fields).Info("Meter read successful")
	} else {
		log.WithFields(fields).Warn("Meter read failed")
	}
	return capture, nil
}

// Diagnose checks that a channel accepts a command. It does not wait for a reply.
func (e *Engine) Diagnose(id ChannelID) (bool, error) {
	log := e.log.WithField("channel", id.String())

	var variant types.MeterVariant
	switch id {
	case ChannelOptical:
		variant = types.SinglePhaseOptical
	case ChannelInfrared:
		variant = types.ThreePhaseInfrared
	default:
		return false, fmt.Errorf("%w: %d", ErrUnknownChannel, int(id))
	}

	x, err := e.begin(variant, id, LowBaud, log)
	if err != nil {
		log.WithError(err).Warn("Diagnostic failed to configure channel")
		return false, nil
	}

	msg, err := catalog.Lookup(variant, catalog.StepHandshake)
	if err != nil {
		return false, err
	}

	if id == ChannelOptical {
		e.setFrontEnd(false, log)
		_, err = sendLine(msg.Text)(x)
		e.setFrontEnd(true, log)
	} else {
		_, err = sendBytewise(msg.Bytes, infraredByteGap)(x)
	}
	if err != nil {
		log.WithError(err).Warn("Diagnostic write failed")
		return false, nil
	}
	return true, nil
}

func (e *Engine) begin(variant types.MeterVariant, id ChannelID, baud uint, log logrus.FieldLogger) (*exchange, error) {
	ch := e.optical
	if id == ChannelInfrared {
		ch = e.infrared
	}
	if ch == nil {
		return nil, fmt.Errorf("%w: %s channel not available", ErrUnknownChannel, id)
	}

	if err := ch.Configure(channel.LineConfig{BaudRate: baud, Frame: e.frame}); err != nil {
		return nil, err
	}
	if err := ch.Clear(); err != nil {
		return nil, err
	}
	return &exchange{e: e, ch: ch, variant: variant, log: log}, nil
}

func (e *Engine) setFrontEnd(on bool, log logrus.FieldLogger) {
	var err error
	if on {
		err = e.frontEnd.Enable()
	} else {
		err = e.frontEnd.Disable()
	}
	if err != nil {
		log.WithError(err).WithField("enable", on).Warn("Failed to switch optical front end")
	}
}
