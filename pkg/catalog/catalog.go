// Package catalog holds the fixed command messages each meter variant expects.
package catalog

import (
	"fmt"

	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

// Exchange steps for the binary protocols.
const (
	StepHandshake = 0
	StepRequest   = 1
)

// ExportFlagIndex is the byte of the 3-phase request that selects export registers.
const (
	ExportFlagIndex = 6
	ExportFlag      = 0x01
)

// Message is either a binary frame or an ASCII command line.
type Message struct {
	Bytes []byte
	Text  string
}

func (m Message) IsText() bool {
	return m.Bytes == nil
}

type key struct {
	variant types.MeterVariant
	step    int
}

var singlePhaseCommands = []string{
	":00413BC4",
	":00423AC5",
	":004339C6",
	":004537C8",
	":004636C9",
}

var (
	threePhaseHandshake = []byte{0x95, 0x95, 0xFF, 0xFF, 0xFF, 0x0B, 0x96, 0x31, 0x11, 0x05, 0x00}
	threePhaseRequest   = []byte{0x95, 0x95, 0xFF, 0xFF, 0xFF, 0x0B, 0x00, 0x31, 0x11, 0x05, 0x00}
	hpHandshake         = []byte{0x95, 0x95, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x10, 0x96, 0x31, 0x11, 0x05, 0x00}
	hpRequest           = []byte{0x95, 0x95, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x10, 0x00, 0x31, 0x11, 0x05, 0x00}
	infraredCommand     = []byte{0xB9, 0x9E, 0x8E, 0x7E, 0x1E}
)

var messages = buildMessages()

func buildMessages() map[key]Message {
	m := make(map[key]Message)
	for _, v := range []types.MeterVariant{types.SinglePhaseOptical, types.SinglePhaseInfrared} {
		for i, cmd := range singlePhaseCommands {
			m[key{v, i}] = Message{Text: cmd}
		}
	}
	for _, v := range []types.MeterVariant{types.ThreePhaseOptical, types.ThreePhaseOpticalSolar} {
		m[key{v, StepHandshake}] = Message{Bytes: threePhaseHandshake}
		m[key{v, StepRequest}] = Message{Bytes: threePhaseRequest}
	}
	for _, v := range []types.MeterVariant{types.ThreePhaseOpticalHP14, types.ThreePhaseOpticalHP13} {
		m[key{v, StepHandshake}] = Message{Bytes: hpHandshake}
		m[key{v, StepRequest}] = Message{Bytes: hpRequest}
	}
	m[key{types.ThreePhaseInfrared, StepHandshake}] = Message{Bytes: infraredCommand}
	return m
}

// Lookup returns the message for a variant's exchange step.
// Binary frames are copied so callers may patch them.
func Lookup(variant types.MeterVariant, step int) (Message, error) {
	msg, ok := messages[key{variant, step}]
	if !ok {
		return Message{}, fmt.Errorf("%w: no message for %s step %d", types.ErrUnsupportedVariant, variant, step)
	}
	if msg.Bytes != nil {
		msg.Bytes = append([]byte(nil), msg.Bytes...)
	}
	return msg, nil
}

// Steps returns how many catalogued messages a variant has.
func Steps(variant types.MeterVariant) int {
	n := 0
	for _, ok := messages[key{variant, n}]; ok; _, ok = messages[key{variant, n}] {
		n++
	}
	return n
}
