package hardware

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"tombola/apperror"
)

// PinReader is the only hardware capability the recorder needs: the
// current level of a named digital input, true meaning HIGH.
type PinReader interface {
	ReadPin(name string) (bool, error)
}

// Board exposes the GPIO inputs of the attached adapter (an FT232H over USB
// on the rig) through periph's pin registry.
type Board struct {
	mu   sync.Mutex
	pins map[string]gpio.PinIO
}

// Open initialises the host drivers and claims the named pins as pulled-up
// inputs. A missing adapter or pin yields apperror.HardwareUnavailable.
func Open(names ...string) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, apperror.HardwareUnavailable.Wrap(err)
	}

	b := &Board{pins: make(map[string]gpio.PinIO, len(names))}
	for _, name := range names {
		p := lookup(name)
		if p == nil {
			return nil, apperror.HardwareUnavailable.Wrap(fmt.Errorf("pin %s not found", name))
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, apperror.HardwareUnavailable.Wrap(fmt.Errorf("configure pin %s: %w", name, err))
		}
		b.pins[name] = p
	}

	return b, nil
}

// lookup finds a pin by its registered name, falling back to a pin whose
// name ends in "."+name so that "C0" matches an adapter pin like "FT232H.C0".
func lookup(name string) gpio.PinIO {
	if p := gpioreg.ByName(name); p != nil {
		return p
	}
	return matchSuffix(name, gpioreg.All())
}

func matchSuffix(name string, pins []gpio.PinIO) gpio.PinIO {
	suffix := "." + name
	for _, p := range pins {
		if strings.HasSuffix(p.Name(), suffix) {
			return p
		}
	}
	return nil
}

func (b *Board) ReadPin(name string) (bool, error) {
	b.mu.Lock()
	p, ok := b.pins[name]
	b.mu.Unlock()

	if !ok {
		return false, errors.New("pin " + name + " was not opened")
	}
	return p.Read() == gpio.High, nil
}

// Pins lists the opened pin names and the driver-reported pin names.
func (b *Board) Pins() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]string, len(b.pins))
	for name, p := range b.pins {
		out[name] = p.Name()
	}
	return out
}
