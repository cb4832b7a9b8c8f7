package engine

import (
	"fmt"

	"github.com/NotCoffee418/optical_meter_reader/pkg/catalog"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

type script func(e *Engine, x *exchange) types.RawCapture

type route struct {
	channel  ChannelID
	baud     uint
	frontEnd bool // hold the optical front end off during the exchange
	run      script
}

// routes is indexed by variant. TestEveryVariantHasRoute keeps it complete.
var routes = [...]route{
	types.SinglePhaseOptical:     {ChannelOptical, LowBaud, true, (*Engine).singlePhase},
	types.ThreePhaseOptical:      {ChannelOptical, HighBaud, true, (*Engine).threePhase},
	types.ThreePhaseOpticalHP14:  {ChannelOptical, HighBaud, true, (*Engine).threePhase},
	types.ThreePhaseOpticalHP13:  {ChannelOptical, HighBaud, true, (*Engine).threePhase},
	types.ThreePhaseOpticalSolar: {ChannelOptical, HighBaud, true, (*Engine).threePhaseSolar},
	types.SinglePhaseInfrared:    {ChannelInfrared, LowBaud, false, (*Engine).singlePhase},
	types.ThreePhaseInfrared:     {ChannelInfrared, LowBaud, false, (*Engine).threePhaseInfrared},
}

func routeFor(variant types.MeterVariant) (route, bool) {
	if int(variant) >= len(routes) || routes[variant].run == nil {
		return route{}, false
	}
	return routes[variant], true
}

// singlePhase sends the five ASCII commands and concatenates whatever each returns.
func (e *Engine) singlePhase(x *exchange) types.RawCapture {
	var data []byte
	for i := 0; i < catalog.Steps(x.variant); i++ {
		msg, err := catalog.Lookup(x.variant, i)
		if err != nil {
			break
		}
		name := fmt.Sprintf("command %d", i+1)
		data = append(data, x.step(name, sendLine(msg.Text), singlePhaseSettle, singlePhaseChunk)...)
	}
	return x.capture(data, len(data) > 0)
}

func (e *Engine) threePhase(x *exchange) types.RawCapture {
	data := e.twoStage(x)
	return x.capture(data, len(data) > 0)
}

// twoStage runs handshake, address splice, settle and request. It proceeds with
// the unpatched template when the handshake response is short.
func (e *Engine) twoStage(x *exchange) []byte {
	p, _ := profileFor(x.variant)
	hs, err := catalog.Lookup(x.variant, catalog.StepHandshake)
	if err != nil {
		return nil
	}

	resp := x.step("handshake", sendBytes(hs.Bytes), 0, p.handshakeMax)
	request, err := DeriveRequest(x.variant, resp)
	if err != nil {
		return nil
	}
	if len(resp) < p.spliceMin {
		x.log.WithField("received", len(resp)).Warn("Handshake response too short for address, using template")
	}

	e.sleeper.Sleep(handshakeSettle)
	return x.step("request", sendBytes(request), 0, p.responseMax)
}

// threePhaseSolar appends a labelled export packet to the import capture.
// Validity follows the import exchange only.
func (e *Engine) threePhaseSolar(x *exchange) types.RawCapture {
	imported := e.twoStage(x)
	if len(imported) == 0 {
		return x.capture(nil, false)
	}

	data := imported
	request, err := ExportRequest()
	if err != nil {
		x.log.WithError(err).Error("Cannot build export request")
		return x.capture(data, true)
	}
	exported := x.step("export request", sendBytes(request), 0, threePhaseProfile.responseMax)
	if len(exported) > 0 {
		data = append(data, types.ExportSectionLabel...)
		data = append(data, exported...)
	} else {
		x.log.Warn("No export data received")
	}
	return x.capture(data, true)
}

func (e *Engine) threePhaseInfrared(x *exchange) types.RawCapture {
	cmd, err := catalog.Lookup(x.variant, catalog.StepHandshake)
	if err != nil {
		return x.capture(nil, false)
	}
	data := x.step("command", sendBytewise(cmd.Bytes, infraredByteGap), infraredPreRead, infraredResponseMax)
	return x.capture(data, len(data) > 0)
}
