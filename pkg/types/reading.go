package types

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Reading is the envelope published to websocket clients and stored by the collector.
type Reading struct {
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Variant   MeterVariant  `json:"variant"`
	Valid     bool          `json:"valid"`
	Length    int           `json:"length"`
	RawHex    string        `json:"raw_hex"`
	Faults    []string      `json:"faults,omitempty"`
	Record    *ParsedRecord `json:"record,omitempty"`
}

func NewReading(capture RawCapture, record *ParsedRecord, at time.Time) *Reading {
	return &Reading{
		ID:        uuid.NewString(),
		Timestamp: at.UTC().Format(time.RFC3339),
		Variant:   capture.Variant,
		Valid:     capture.Valid,
		Length:    capture.Length(),
		RawHex:    hex.EncodeToString(capture.data),
		Faults:    capture.Faults(),
		Record:    record,
	}
}

// RawBytes decodes RawHex back into the captured bytes.
func (r *Reading) RawBytes() ([]byte, error) {
	return hex.DecodeString(r.RawHex)
}

func (r *Reading) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, r.Timestamp)
}

func (r *Reading) ToJsonBytes() []byte {
	b, _ := json.Marshal(r)
	return b
}

func ReadingFromJsonBytes(b []byte) (*Reading, error) {
	var r Reading
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
