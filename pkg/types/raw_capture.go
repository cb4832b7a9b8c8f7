package types

import (
	"fmt"
	"strings"
)

// ExportSectionLabel separates the import packet from the export packet in a
// solar capture.
const ExportSectionLabel = "\n** EXPORT DATA **\n"

// StepReport records the outcome of one send/receive step of an exchange.
type StepReport struct {
	Name     string `json:"name"`
	Sent     int    `json:"sent"`
	Received int    `json:"received"`
	Expected int    `json:"expected"`
	Err      error  `json:"-"`
}

// RawCapture is the byte sequence collected during one exchange.
// The captured bytes are copied in and out so a capture never changes after creation.
type RawCapture struct {
	Variant MeterVariant
	Valid   bool
	Steps   []StepReport
	data    []byte
}

func NewRawCapture(variant MeterVariant, valid bool, data []byte, steps []StepReport) RawCapture {
	return RawCapture{
		Variant: variant,
		Valid:   valid,
		Steps:   steps,
		data:    append([]byte(nil), data...),
	}
}

func (c RawCapture) Bytes() []byte {
	return append([]byte(nil), c.data...)
}

func (c RawCapture) Length() int {
	return len(c.data)
}

// Faults returns the error text of every step that failed.
func (c RawCapture) Faults() []string {
	var faults []string
	for _, step := range c.Steps {
		if step.Err != nil {
			faults = append(faults, step.Err.Error())
		}
	}
	return faults
}

// HexDump renders the capture as rows of 16 hex bytes, each prefixed with its offset.
func (c RawCapture) HexDump() string {
	var sb strings.Builder
	for row := 0; row < len(c.data); row += 16 {
		if row > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%04X:", row)
		end := min(row+16, len(c.data))
		for _, b := range c.data[row:end] {
			fmt.Fprintf(&sb, " %02X", b)
		}
	}
	return sb.String()
}

// Printable renders the capture as text, replacing non printable bytes with '.'.
// Useful for the ASCII single-phase protocol.
func (c RawCapture) Printable() string {
	out := make([]byte, len(c.data))
	for i, b := range c.data {
		if b == '\n' || (b >= 0x20 && b < 0x7F) {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
