package decoder

import (
	"strconv"

	"github.com/NotCoffee418/optical_meter_reader/pkg/units"
)

// BigEndian assembles up to four bytes, most significant first.
func BigEndian(b []byte) uint32 {
	var v uint32
	for _, x := range b {
		v = v<<8 | uint32(x)
	}
	return v
}

// BCD renders the two nibbles of b as decimal digits.
// Nibbles above 9 are rendered literally, so 0xA5 becomes "105".
func BCD(b byte) string {
	return strconv.Itoa(int(b>>4)) + strconv.Itoa(int(b&0x0F))
}

func Scale(raw uint32, decimals int) float64 {
	return units.ScaleFixedPoint(raw, decimals)
}

// FormatTime renders HH:MM, adding :SS only when the seconds byte is non-zero.
func FormatTime(hour, minute, second byte) string {
	s := BCD(hour) + ":" + BCD(minute)
	if second != 0 {
		s += ":" + BCD(second)
	}
	return s
}

func FormatDate(day, month, year byte) string {
	return BCD(day) + ":" + BCD(month) + ":" + BCD(year)
}

// fields reads positional fields from a capture. A field is only read when the
// capture contains all of its bytes.
type fields []byte

func (f fields) has(offset, width int) bool {
	return offset >= 0 && len(f) >= offset+width
}

func (f fields) number(offset, width int) (uint32, bool) {
	if !f.has(offset, width) {
		return 0, false
	}
	return BigEndian(f[offset : offset+width]), true
}

func (f fields) scaled(dst *float64, offset, width, decimals int) {
	if v, ok := f.number(offset, width); ok {
		*dst = Scale(v, decimals)
	}
}

func (f fields) integer(dst *int, offset, width int) {
	if v, ok := f.number(offset, width); ok {
		*dst = int(v)
	}
}

func (f fields) decimal(dst *string, offset, width int) {
	if v, ok := f.number(offset, width); ok {
		*dst = strconv.FormatUint(uint64(v), 10)
	}
}

func (f fields) text(dst *string, offset, width int) {
	if f.has(offset, width) {
		*dst = string(f[offset : offset+width])
	}
}

func (f fields) time(dst *string, offset int, withSeconds bool) {
	if withSeconds {
		if f.has(offset, 3) {
			*dst = FormatTime(f[offset], f[offset+1], f[offset+2])
		}
		return
	}
	if f.has(offset, 2) {
		*dst = FormatTime(f[offset], f[offset+1], 0)
	}
}

func (f fields) date(dst *string, offset int) {
	if f.has(offset, 3) {
		*dst = FormatDate(f[offset], f[offset+1], f[offset+2])
	}
}
