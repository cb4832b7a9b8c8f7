package channel

import (
	"fmt"
	"os"
)

// NopFrontEnd is used when the optical front end is not switchable.
type NopFrontEnd struct{}

func (NopFrontEnd) Enable() error  { return nil }
func (NopFrontEnd) Disable() error { return nil }

// GPIOFrontEnd drives the front-end enable line through a sysfs GPIO value file.
type GPIOFrontEnd struct {
	valuePath string
	activeLow bool
}

// NewGPIOFrontEnd takes the value file of an exported pin, e.g. /sys/class/gpio/gpio17/value.
func NewGPIOFrontEnd(valuePath string, activeLow bool) *GPIOFrontEnd {
	return &GPIOFrontEnd{valuePath: valuePath, activeLow: activeLow}
}

func (g *GPIOFrontEnd) Enable() error {
	return g.set(true)
}

func (g *GPIOFrontEnd) Disable() error {
	return g.set(false)
}

func (g *GPIOFrontEnd) set(on bool) error {
	level := on != g.activeLow
	value := "0"
	if level {
		value = "1"
	}
	if err := os.WriteFile(g.valuePath, []byte(value), 0o644); err != nil {
		return fmt.Errorf("set front end gpio: %w", err)
	}
	return nil
}
