// Package decoder maps raw meter captures onto unit-scaled records using the
// fixed offset layout of each meter variant.
package decoder

import (
	"errors"
	"fmt"

	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
)

var ErrCaptureTooShort = errors.New("capture too short")

// Decode validates the capture length and decodes every field the capture contains.
// A short capture yields an invalid, empty record and ErrCaptureTooShort.
func Decode(capture types.RawCapture) (types.ParsedRecord, error) {
	rec := types.ParsedRecord{Variant: capture.Variant}

	l, ok := layouts[capture.Variant]
	if !ok {
		return rec, fmt.Errorf("%w: %s", types.ErrUnsupportedVariant, capture.Variant)
	}
	if capture.Length() < l.minLength {
		return rec, fmt.Errorf("%w: %s needs %d bytes, got %d",
			ErrCaptureTooShort, capture.Variant, l.minLength, capture.Length())
	}

	l.decode(fields(capture.Bytes()), &rec)
	rec.Valid = true
	return rec, nil
}
