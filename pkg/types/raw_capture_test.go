package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawCaptureIsolatedFromCaller(t *testing.T) {
	src := []byte{0x01, 0x02, 0x03}
	c := NewRawCapture(ThreePhaseOptical, true, src, nil)
	src[0] = 0xFF

	out := c.Bytes()
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, out)
	out[1] = 0xFF
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, c.Bytes())
	assert.Equal(t, 3, c.Length())
}

func TestHexDumpWrapsAtSixteen(t *testing.T) {
	data := make([]byte, 18)
	for i := range data {
		data[i] = byte(i)
	}
	c := NewRawCapture(ThreePhaseOptical, true, data, nil)
	assert.Equal(t,
		"0000: 00 01 02 03 04 05 06 07 08 09 0A 0B 0C 0D 0E 0F\n0010: 10 11",
		c.HexDump())
	assert.Equal(t, "", NewRawCapture(ThreePhaseOptical, false, nil, nil).HexDump())
}

func TestPrintable(t *testing.T) {
	c := NewRawCapture(SinglePhaseOptical, true, []byte(":0041\x06AB\r\n"), nil)
	assert.Equal(t, ":0041.AB.\n", c.Printable())
}

func TestFaultsCollectsStepErrors(t *testing.T) {
	c := NewRawCapture(ThreePhaseOptical, false, nil, []StepReport{
		{Name: "handshake", Received: 30, Expected: 30},
		{Name: "request", Err: errors.New("request: response timeout")},
	})
	assert.Equal(t, []string{"request: response timeout"}, c.Faults())
}

func TestReadingEnvelope(t *testing.T) {
	c := NewRawCapture(ThreePhaseInfrared, true, []byte{0xB9, 0x9E}, nil)
	at := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	r := NewReading(c, &ParsedRecord{Variant: ThreePhaseInfrared, Valid: true}, at)

	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "2025-03-14T12:00:00Z", r.Timestamp)
	assert.Equal(t, "b99e", r.RawHex)
	assert.Equal(t, 2, r.Length)

	back, err := ReadingFromJsonBytes(r.ToJsonBytes())
	require.NoError(t, err)
	assert.Equal(t, r, back)

	raw, err := back.RawBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xB9, 0x9E}, raw)
}

func TestSummaryOfInvalidRecord(t *testing.T) {
	assert.Equal(t, "3ph-optical: no valid record", ParsedRecord{Variant: ThreePhaseOptical}.Summary())
}

func TestSummaryListsPresentFields(t *testing.T) {
	r := ParsedRecord{
		Variant:    ThreePhaseOptical,
		Valid:      true,
		Identity:   MeterIdentity{ManufacturerID: "1193046", Phase: 3},
		Energy:     EnergyReadings{KWh: 12.5},
		Electrical: ElectricalReadings{VoltageR: 231.3},
	}
	s := r.Summary()
	assert.Contains(t, s, "=== METER INFORMATION ===\nVariant:         3ph-optical")
	assert.Contains(t, s, "Manufacturer ID: 1193046")
	assert.Contains(t, s, "Voltage R:       231.3 V")
	assert.Contains(t, s, "kWh:             12.5")
	assert.Contains(t, s, "=== ELECTRICAL DATA ===")
	assert.NotContains(t, s, "Export")
	assert.NotContains(t, s, "Current R")
}
