package engine

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/channel"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

// exchange accumulates the step reports of one read attempt on one channel.
type exchange struct {
	e       *Engine
	ch      channel.Channel
	variant types.MeterVariant
	log     logrus.FieldLogger
	steps   []types.StepReport
}

type sender func(x *exchange) (int, error)

// sendBytes writes the whole frame in one call.
func sendBytes(frame []byte) sender {
	return func(x *exchange) (int, error) {
		return x.ch.Write(frame)
	}
}

func sendLine(text string) sender {
	return func(x *exchange) (int, error) {
		if err := x.ch.WriteLine(text); err != nil {
			return 0, err
		}
		return len(text), nil
	}
}

// sendBytewise writes one byte at a time with a gap after each, for receivers
// that drop bytes arriving back to back.
func sendBytewise(frame []byte, gap time.Duration) sender {
	return func(x *exchange) (int, error) {
		sent := 0
		for _, b := range frame {
			n, err := x.ch.Write([]byte{b})
			sent += n
			if err != nil {
				return sent, err
			}
			x.e.sleeper.Sleep(gap)
		}
		return sent, nil
	}
}

// step sends a command, waits settle, then collects up to max bytes.
// A failed write skips the read and yields no bytes.
func (x *exchange) step(name string, send sender, settle time.Duration, max int) []byte {
	report := types.StepReport{Name: name, Expected: max}
	log := x.log.WithField("step", name)

	n, err := send(x)
	report.Sent = n
	if err != nil {
		report.Err = fmt.Errorf("%s: %w: %w", name, ErrChannelWriteFailure, err)
		log.WithError(err).Warn("Failed to send command")
		x.steps = append(x.steps, report)
		return nil
	}

	if settle > 0 {
		x.e.sleeper.Sleep(settle)
	}

	resp, err := x.ch.ReadUpTo(max, responseTimeout)
	report.Received = len(resp)
	switch {
	case err != nil:
		report.Err = fmt.Errorf("%s: %w: %w", name, ErrResponseTimeout, err)
		log.WithError(err).Warn("Read failed")
	case len(resp) < max:
		report.Err = fmt.Errorf("%s: %w: %d of %d bytes", name, ErrResponseTimeout, len(resp), max)
		log.WithFields(logrus.Fields{"received": len(resp), "expected": max}).Debug("Short response")
	}
	x.steps = append(x.steps, report)
	return resp
}

func (x *exchange) capture(data []byte, valid bool) types.RawCapture {
	return types.NewRawCapture(x.variant, valid, data, x.steps)
}
