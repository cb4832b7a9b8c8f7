package decoder

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

// Minimum capture lengths per record layout.
const (
	SinglePhaseMinLength = 120
	ThreePhaseMinLength  = 79
	HPMinLength          = 71
	InfraredMinLength    = 43
)

// singlePhaseTerminator is stripped from text fields of the single-phase protocol.
const singlePhaseTerminator = "\x06"

type layout struct {
	minLength int
	decode    func(data fields, rec *types.ParsedRecord)
}

var layouts = map[types.MeterVariant]layout{
	types.SinglePhaseOptical:     {SinglePhaseMinLength, decodeSinglePhase},
	types.SinglePhaseInfrared:    {SinglePhaseMinLength, decodeSinglePhase},
	types.ThreePhaseOptical:      {ThreePhaseMinLength, decodeThreePhase},
	types.ThreePhaseOpticalSolar: {ThreePhaseMinLength, decodeSolar},
	types.ThreePhaseOpticalHP14:  {HPMinLength, decodeHP(8)},
	types.ThreePhaseOpticalHP13:  {HPMinLength, decodeHP(7)},
	types.ThreePhaseInfrared:     {InfraredMinLength, decodeInfrared},
}

// MinLength returns the shortest capture the variant's layout accepts.
func MinLength(variant types.MeterVariant) (int, error) {
	l, ok := layouts[variant]
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrUnsupportedVariant, variant)
	}
	return l.minLength, nil
}

func decodeThreePhase(f fields, rec *types.ParsedRecord) {
	f.decimal(&rec.Identity.ManufacturerID, 18, 3)
	f.time(&rec.Identity.Time, 21, true)
	f.date(&rec.Identity.Date, 24)

	f.scaled(&rec.Electrical.VoltageR, 27, 2, 1)
	f.scaled(&rec.Electrical.VoltageY, 29, 2, 1)
	f.scaled(&rec.Electrical.VoltageB, 31, 2, 1)
	f.scaled(&rec.Electrical.CurrentR, 33, 2, 2)
	f.scaled(&rec.Electrical.CurrentY, 35, 2, 2)
	f.scaled(&rec.Electrical.CurrentB, 37, 2, 2)

	decodeThreePhaseEnergy(f, &rec.Energy)

	f.text(&rec.Identity.Make, 66, 3)
	if f.has(69, 1) {
		rec.Identity.Phase = int(f[69])
	}
	f.scaled(&rec.Identity.Multiplier, 70, 2, 2)
}

func decodeThreePhaseEnergy(f fields, e *types.EnergyReadings) {
	f.scaled(&e.KWh, 43, 4, 2)
	f.scaled(&e.KVAh, 55, 4, 2)
	f.scaled(&e.MaxDemand, 59, 2, 2)
}

// decodeSolar decodes the import packet and, when the export section carries a
// complete packet, its energy registers.
func decodeSolar(f fields, rec *types.ParsedRecord) {
	imported, exported, found := bytes.Cut(f, []byte(types.ExportSectionLabel))
	decodeThreePhase(fields(imported), rec)
	if found && len(exported) >= ThreePhaseMinLength {
		var e types.EnergyReadings
		decodeThreePhaseEnergy(fields(exported), &e)
		rec.Export = &e
	}
}

func decodeHP(idDigits int) func(fields, *types.ParsedRecord) {
	return func(f fields, rec *types.ParsedRecord) {
		if id, ok := f.number(23, 4); ok {
			rec.Identity.ManufacturerID = fmt.Sprintf("%0*d", idDigits, id)
		}
		f.time(&rec.Identity.Time, 31, true)
		f.date(&rec.Identity.Date, 34)

		f.scaled(&rec.Electrical.VoltageR, 38, 2, 1)
		f.scaled(&rec.Electrical.VoltageY, 40, 2, 1)
		f.scaled(&rec.Electrical.VoltageB, 42, 2, 1)
		f.scaled(&rec.Electrical.CurrentR, 44, 2, 2)
		f.scaled(&rec.Electrical.CurrentY, 46, 2, 2)
		f.scaled(&rec.Electrical.CurrentB, 48, 2, 2)

		// kWh overlaps the last byte of current B.
		f.scaled(&rec.Energy.KWh, 49, 4, 2)
		f.scaled(&rec.Energy.KVAh, 53, 4, 2)
		rec.Identity.Phase = 3
	}
}

func decodeInfrared(f fields, rec *types.ParsedRecord) {
	f.decimal(&rec.Identity.ManufacturerID, 6, 4)
	f.date(&rec.Identity.Date, 10)
	f.time(&rec.Identity.Time, 13, false)

	f.scaled(&rec.Energy.KWh, 15, 4, 3)
	f.scaled(&rec.Energy.KVArhLag, 19, 4, 3)
	f.scaled(&rec.Energy.KVArhLead, 23, 4, 3)
	f.scaled(&rec.Energy.KVAh, 27, 4, 3)
	f.scaled(&rec.Energy.PowerFactor, 31, 1, 2)
	f.scaled(&rec.Energy.MaxDemand, 32, 2, 3)

	f.integer(&rec.Electrical.TamperCount, 39, 2)
	f.integer(&rec.Electrical.TamperStatus, 41, 2)
	rec.Identity.Phase = 3
}

func decodeSinglePhase(f fields, rec *types.ParsedRecord) {
	if f.has(16, 8) {
		rec.Identity.SerialNumber = cleanText(f[16:24])
	}

	second := indexFrom(f, ':', 30)
	if second >= 0 && f.has(second+16, 16) {
		rec.Identity.ManufacturerID = cleanText(f[second+16 : second+32])
	}

	if second >= 0 {
		third := indexFrom(f, ':', second+30)
		if third >= 0 && f.has(third+16, 9) {
			kwh, err := strconv.ParseFloat(cleanText(f[third+16:third+25]), 64)
			if err == nil {
				rec.Energy.KWh = kwh
			}
		}
	}
	rec.Identity.Phase = 1
}

func cleanText(b []byte) string {
	return strings.TrimSpace(strings.ReplaceAll(string(b), singlePhaseTerminator, ""))
}

func indexFrom(b []byte, c byte, from int) int {
	if from >= len(b) {
		return -1
	}
	i := bytes.IndexByte(b[from:], c)
	if i < 0 {
		return -1
	}
	return from + i
}
