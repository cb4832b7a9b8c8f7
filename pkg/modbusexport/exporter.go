// Package modbusexport publishes decoded records as holding registers on a
// Modbus TCP server, for PLCs and SCADA systems that cannot consume JSON.
package modbusexport

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/sirupsen/logrus"

	"github.com/NotCoffee418/optical_meter_reader/pkg/types"
	"github.com/NotCoffee418/optical_meter_reader/pkg/units"
)

var ErrNoEndpoint = errors.New("modbusexport: endpoint required")

// Register offsets from the configured base address. 32-bit values occupy two
// registers, high word first.
const (
	RegVariant      = 0
	RegPhase        = 1
	RegKWh          = 2  // x100
	RegKVAh         = 4  // x100
	RegKVArhLag     = 6  // x1000
	RegKVArhLead    = 8  // x1000
	RegExportKWh    = 10 // x100
	RegMaxDemand    = 12 // x1000
	RegPowerFactor  = 14 // x100
	RegVoltageR     = 15 // x10, then Y and B
	RegCurrentR     = 18 // x100, then Y and B
	RegTamperCount  = 21
	RegTamperStatus = 22
	RegValid        = 23

	RecordRegisters = 24
)

type Config struct {
	Endpoint    string
	UnitID      uint8
	BaseAddress uint16
	Timeout     time.Duration
}

type registerWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Exporter serializes writes over a single TCP connection.
type Exporter struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  registerWriter
	base    uint16
	log     logrus.FieldLogger
}

func New(cfg Config, log logrus.FieldLogger) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("connect modbus endpoint %s: %w", cfg.Endpoint, err)
	}

	return &Exporter{
		handler: h,
		client:  modbus.NewClient(h),
		base:    cfg.BaseAddress,
		log:     log.WithField("endpoint", cfg.Endpoint),
	}, nil
}

// Publish writes the record's register block in one request.
func (e *Exporter) Publish(rec types.ParsedRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	regs := EncodeRecord(rec)
	if _, err := e.client.WriteMultipleRegisters(e.base, uint16(len(regs)), packRegisters(regs)); err != nil {
		return fmt.Errorf("write registers at %d: %w", e.base, err)
	}
	e.log.WithField("variant", rec.Variant.String()).Debug("Record published to modbus")
	return nil
}

func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handler == nil {
		return nil
	}
	return e.handler.Close()
}

// EncodeRecord lays a record out in the register map above.
func EncodeRecord(rec types.ParsedRecord) []uint16 {
	regs := make([]uint16, RecordRegisters)
	put32 := func(at int, v uint32) {
		regs[at] = uint16(v >> 16)
		regs[at+1] = uint16(v)
	}
	put16 := func(at int, v uint32) {
		if v > 0xFFFF {
			v = 0xFFFF
		}
		regs[at] = uint16(v)
	}

	regs[RegVariant] = uint16(rec.Variant)
	regs[RegPhase] = uint16(rec.Identity.Phase)
	if !rec.Valid {
		return regs
	}
	regs[RegValid] = 1

	put32(RegKWh, units.ToFixedPoint(rec.Energy.KWh, 2))
	put32(RegKVAh, units.ToFixedPoint(rec.Energy.KVAh, 2))
	put32(RegKVArhLag, units.ToFixedPoint(rec.Energy.KVArhLag, 3))
	put32(RegKVArhLead, units.ToFixedPoint(rec.Energy.KVArhLead, 3))
	if rec.Export != nil {
		put32(RegExportKWh, units.ToFixedPoint(rec.Export.KWh, 2))
	}
	put32(RegMaxDemand, units.ToFixedPoint(rec.Energy.MaxDemand, 3))
	put16(RegPowerFactor, units.ToFixedPoint(rec.Energy.PowerFactor, 2))

	el := rec.Electrical
	for i, v := range []float64{el.VoltageR, el.VoltageY, el.VoltageB} {
		put16(RegVoltageR+i, units.ToFixedPoint(v, 1))
	}
	for i, v := range []float64{el.CurrentR, el.CurrentY, el.CurrentB} {
		put16(RegCurrentR+i, units.ToFixedPoint(v, 2))
	}
	put16(RegTamperCount, uint32(max(el.TamperCount, 0)))
	put16(RegTamperStatus, uint32(max(el.TamperStatus, 0)))
	return regs
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
