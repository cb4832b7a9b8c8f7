package channel

import (
	"fmt"
	"strings"
)

type Parity byte

const (
	ParityNone Parity = 'N'
	ParityEven Parity = 'E'
	ParityOdd  Parity = 'O'
)

// FrameFormat is the character framing of a serial line, e.g. 8N1.
type FrameFormat struct {
	DataBits int
	Parity   Parity
	StopBits int
}

var Frame8N1 = FrameFormat{DataBits: 8, Parity: ParityNone, StopBits: 1}

func (f FrameFormat) String() string {
	return fmt.Sprintf("%d%c%d", f.DataBits, f.Parity, f.StopBits)
}

// ParseFrameFormat parses notation such as "8N1" or "7e2".
func ParseFrameFormat(s string) (FrameFormat, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return FrameFormat{}, fmt.Errorf("%w: %q", ErrBadFrame, s)
	}

	f := FrameFormat{
		DataBits: int(s[0] - '0'),
		Parity:   Parity(s[1]),
		StopBits: int(s[2] - '0'),
	}
	if f.DataBits < 5 || f.DataBits > 8 {
		return FrameFormat{}, fmt.Errorf("%w: data bits in %q", ErrBadFrame, s)
	}
	switch f.Parity {
	case ParityNone, ParityEven, ParityOdd:
	default:
		return FrameFormat{}, fmt.Errorf("%w: parity in %q", ErrBadFrame, s)
	}
	if f.StopBits != 1 && f.StopBits != 2 {
		return FrameFormat{}, fmt.Errorf("%w: stop bits in %q", ErrBadFrame, s)
	}
	return f, nil
}
