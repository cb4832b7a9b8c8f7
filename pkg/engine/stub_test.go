package engine

import (
	"bytes"
	"errors"
	"time"

	"github.com/NotCoffee418/optical_meter_reader/pkg/channel"
)

type read struct {
	max     int
	timeout time.Duration
}

// stubChannel replays scripted responses, one per ReadUpTo call.
type stubChannel struct {
	responses [][]byte
	configs   []channel.LineConfig
	writes    [][]byte
	lines     []string
	reads     []read
	clears    int

	failWrites   bool
	configureErr error
}

func (s *stubChannel) Configure(cfg channel.LineConfig) error {
	s.configs = append(s.configs, cfg)
	return s.configureErr
}

func (s *stubChannel) Write(p []byte) (int, error) {
	if s.failWrites {
		return 0, errors.New("tx stuck")
	}
	s.writes = append(s.writes, bytes.Clone(p))
	return len(p), nil
}

func (s *stubChannel) WriteLine(text string) error {
	if s.failWrites {
		return errors.New("tx stuck")
	}
	s.lines = append(s.lines, text)
	return nil
}

func (s *stubChannel) ReadUpTo(max int, timeout time.Duration) ([]byte, error) {
	s.reads = append(s.reads, read{max, timeout})
	if len(s.responses) == 0 {
		return nil, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	if len(resp) > max {
		resp = resp[:max]
	}
	return bytes.Clone(resp), nil
}

func (s *stubChannel) Clear() error {
	s.clears++
	return nil
}

func (s *stubChannel) Close() error { return nil }

type recordingSleeper struct {
	sleeps []time.Duration
}

func (r *recordingSleeper) Sleep(d time.Duration) {
	r.sleeps = append(r.sleeps, d)
}

type recordingFrontEnd struct {
	events []string
}

func (f *recordingFrontEnd) Enable() error {
	f.events = append(f.events, "enable")
	return nil
}

func (f *recordingFrontEnd) Disable() error {
	f.events = append(f.events, "disable")
	return nil
}

func filled(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}
