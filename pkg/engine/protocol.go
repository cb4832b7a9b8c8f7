package engine

import (
	"fmt"
	"time"

	"github.com/NotCoffee418/optical_meter_reader/pkg/catalog"
	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

const (
	LowBaud  uint = 2400
	HighBaud uint = 9600
)

// Protocol timing. The meters need these delays to process a request.
const (
	singlePhaseSettle = 200 * time.Millisecond
	handshakeSettle   = 1500 * time.Millisecond
	responseTimeout   = 2000 * time.Millisecond
	infraredPreRead   = 500 * time.Millisecond
	infraredByteGap   = 2 * time.Millisecond
)

const (
	singlePhaseChunk    = 30
	infraredResponseMax = 50
)

// twoStage describes a handshake whose response supplies address bytes for the
// request that follows it.
type twoStage struct {
	handshakeMax int
	spliceMin    int
	spliceFrom   int
	spliceTo     int
	spliceLen    int
	responseMax  int
}

var (
	threePhaseProfile = twoStage{
		handshakeMax: 30,
		spliceMin:    25,
		spliceFrom:   22,
		spliceTo:     2,
		spliceLen:    3,
		responseMax:  79,
	}
	hpProfile = twoStage{
		handshakeMax: 45,
		spliceMin:    40,
		spliceFrom:   32,
		spliceTo:     2,
		spliceLen:    8,
		responseMax:  71,
	}
)

func profileFor(variant types.MeterVariant) (twoStage, bool) {
	switch variant {
	case types.ThreePhaseOptical, types.ThreePhaseOpticalSolar:
		return threePhaseProfile, true
	case types.ThreePhaseOpticalHP14, types.ThreePhaseOpticalHP13:
		return hpProfile, true
	}
	return twoStage{}, false
}

// DeriveRequest builds the second message of a two-stage exchange. When the
// handshake response is long enough its address bytes are copied into the
// request template; otherwise the template is returned unchanged.
func DeriveRequest(variant types.MeterVariant, handshakeResponse []byte) ([]byte, error) {
	p, ok := profileFor(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no handshake", types.ErrUnsupportedVariant, variant)
	}
	msg, err := catalog.Lookup(variant, catalog.StepRequest)
	if err != nil {
		return nil, err
	}
	request := msg.Bytes
	if len(handshakeResponse) >= p.spliceMin {
		copy(request[p.spliceTo:p.spliceTo+p.spliceLen], handshakeResponse[p.spliceFrom:p.spliceFrom+p.spliceLen])
	}
	return request, nil
}

// ExportRequest is the 3-phase request template with the export flag set.
func ExportRequest() ([]byte, error) {
	msg, err := catalog.Lookup(types.ThreePhaseOpticalSolar, catalog.StepRequest)
	if err != nil {
		return nil, err
	}
	return withExportFlag(msg.Bytes)
}

func withExportFlag(request []byte) ([]byte, error) {
	if len(request) <= catalog.ExportFlagIndex {
		return nil, fmt.Errorf("request of %d bytes has no export flag", len(request))
	}
	request[catalog.ExportFlagIndex] = catalog.ExportFlag
	return request, nil
}
