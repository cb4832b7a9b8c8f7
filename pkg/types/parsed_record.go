package types

import (
	"fmt"
	"strings"
)

type MeterIdentity struct {
	SerialNumber   string  `json:"serial_number,omitempty"`
	ManufacturerID string  `json:"manufacturer_id,omitempty"`
	Make           string  `json:"make,omitempty"`
	Time           string  `json:"time,omitempty"`
	Date           string  `json:"date,omitempty"`
	Phase          int     `json:"phase"`
	Multiplier     float64 `json:"multiplier,omitempty"`
}

// MeterID returns the best available identifier for the meter.
func (id MeterIdentity) MeterID() string {
	if id.SerialNumber != "" {
		return id.SerialNumber
	}
	return id.ManufacturerID
}

type EnergyReadings struct {
	KWh         float64 `json:"kwh"`
	KVAh        float64 `json:"kvah"`
	KVArhLag    float64 `json:"kvarh_lag,omitempty"`
	KVArhLead   float64 `json:"kvarh_lead,omitempty"`
	MaxDemand   float64 `json:"max_demand,omitempty"`
	PowerFactor float64 `json:"power_factor,omitempty"`
}

type ElectricalReadings struct {
	VoltageR     float64 `json:"voltage_r,omitempty"`
	VoltageY     float64 `json:"voltage_y,omitempty"`
	VoltageB     float64 `json:"voltage_b,omitempty"`
	CurrentR     float64 `json:"current_r,omitempty"`
	CurrentY     float64 `json:"current_y,omitempty"`
	CurrentB     float64 `json:"current_b,omitempty"`
	Frequency    float64 `json:"frequency,omitempty"`
	TamperCount  int     `json:"tamper_count,omitempty"`
	TamperStatus int     `json:"tamper_status,omitempty"`
}

// ParsedRecord holds the fields decoded from a capture.
// Fields that are not part of a variant's layout keep their zero value.
type ParsedRecord struct {
	Variant    MeterVariant       `json:"variant"`
	Valid      bool               `json:"valid"`
	Identity   MeterIdentity      `json:"identity"`
	Energy     EnergyReadings     `json:"energy"`
	Electrical ElectricalReadings `json:"electrical"`
	Export     *EnergyReadings    `json:"export,omitempty"`
}

// Summary renders the non-empty fields of the record as labelled lines grouped
// into meter, energy and electrical sections.
func (r ParsedRecord) Summary() string {
	if !r.Valid {
		return fmt.Sprintf("%s: no valid record", r.Variant)
	}

	var out []string
	section := func(title string, lines []string) {
		if len(lines) > 0 {
			out = append(out, "=== "+title+" ===")
			out = append(out, lines...)
		}
	}

	var info []string
	text := func(dst *[]string, label, value string) {
		if value != "" {
			*dst = append(*dst, fmt.Sprintf("%-16s %s", label+":", value))
		}
	}
	num := func(dst *[]string, label string, value float64, unit string) {
		if value != 0 {
			text(dst, label, strings.TrimSpace(fmt.Sprintf("%g %s", value, unit)))
		}
	}

	text(&info, "Variant", r.Variant.String())
	text(&info, "Serial", r.Identity.SerialNumber)
	text(&info, "Manufacturer ID", r.Identity.ManufacturerID)
	text(&info, "Make", r.Identity.Make)
	text(&info, "Date", r.Identity.Date)
	text(&info, "Time", r.Identity.Time)
	if r.Identity.Phase != 0 {
		text(&info, "Phase", fmt.Sprint(r.Identity.Phase))
	}
	num(&info, "Multiplier", r.Identity.Multiplier, "")
	section("METER INFORMATION", info)

	var energy []string
	writeEnergy := func(prefix string, e EnergyReadings) {
		text(&energy, prefix+"kWh", fmt.Sprintf("%g", e.KWh))
		num(&energy, prefix+"kVAh", e.KVAh, "")
		num(&energy, prefix+"kVArh lag", e.KVArhLag, "")
		num(&energy, prefix+"kVArh lead", e.KVArhLead, "")
		num(&energy, prefix+"Max demand", e.MaxDemand, "kW")
		num(&energy, prefix+"Power factor", e.PowerFactor, "")
	}
	writeEnergy("", r.Energy)
	if r.Export != nil {
		writeEnergy("Export ", *r.Export)
	}
	section("ENERGY DATA", energy)

	var elec []string
	num(&elec, "Voltage R", r.Electrical.VoltageR, "V")
	num(&elec, "Voltage Y", r.Electrical.VoltageY, "V")
	num(&elec, "Voltage B", r.Electrical.VoltageB, "V")
	num(&elec, "Current R", r.Electrical.CurrentR, "A")
	num(&elec, "Current Y", r.Electrical.CurrentY, "A")
	num(&elec, "Current B", r.Electrical.CurrentB, "A")
	num(&elec, "Frequency", r.Electrical.Frequency, "Hz")
	if r.Electrical.TamperCount != 0 || r.Electrical.TamperStatus != 0 {
		text(&elec, "Tamper count", fmt.Sprint(r.Electrical.TamperCount))
		text(&elec, "Tamper status", fmt.Sprintf("0x%04X", r.Electrical.TamperStatus))
	}
	section("ELECTRICAL DATA", elec)

	return strings.Join(out, "\n")
}
