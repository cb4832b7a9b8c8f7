package types

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedVariant = errors.New("unsupported meter variant")

// MeterVariant selects the exchange script and the record layout for a meter model.
type MeterVariant uint8

const (
	VariantUnknown MeterVariant = iota
	SinglePhaseOptical
	ThreePhaseOptical
	ThreePhaseOpticalHP14
	ThreePhaseOpticalHP13
	ThreePhaseOpticalSolar
	SinglePhaseInfrared
	ThreePhaseInfrared
)

var variantNames = map[MeterVariant]string{
	SinglePhaseOptical:     "1ph-optical",
	ThreePhaseOptical:      "3ph-optical",
	ThreePhaseOpticalHP14:  "3ph-optical-hp14",
	ThreePhaseOpticalHP13:  "3ph-optical-hp13",
	ThreePhaseOpticalSolar: "3ph-optical-solar",
	SinglePhaseInfrared:    "1ph-infrared",
	ThreePhaseInfrared:     "3ph-infrared",
}

// AllVariants lists every supported variant in declaration order.
func AllVariants() []MeterVariant {
	return []MeterVariant{
		SinglePhaseOptical,
		ThreePhaseOptical,
		ThreePhaseOpticalHP14,
		ThreePhaseOpticalHP13,
		ThreePhaseOpticalSolar,
		SinglePhaseInfrared,
		ThreePhaseInfrared,
	}
}

func (v MeterVariant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

func (v MeterVariant) Supported() bool {
	_, ok := variantNames[v]
	return ok
}

// IsInfrared reports whether the variant talks over the infrared channel.
func (v MeterVariant) IsInfrared() bool {
	return v == SinglePhaseInfrared || v == ThreePhaseInfrared
}

func (v MeterVariant) IsSinglePhase() bool {
	return v == SinglePhaseOptical || v == SinglePhaseInfrared
}

// ParseMeterVariant accepts the names produced by String, case-insensitively.
func ParseMeterVariant(s string) (MeterVariant, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for v, name := range variantNames {
		if name == want {
			return v, nil
		}
	}
	return VariantUnknown, fmt.Errorf("%w: %q", ErrUnsupportedVariant, s)
}

func (v MeterVariant) MarshalText() ([]byte, error) {
	if !v.Supported() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVariant, uint8(v))
	}
	return []byte(v.String()), nil
}

func (v *MeterVariant) UnmarshalText(text []byte) error {
	parsed, err := ParseMeterVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
