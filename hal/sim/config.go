//go:build !baremetal

package sim

import (
	"io"

	"gopkg.in/yaml.v3"

	"periphcore-go/errcode"
)

// Config describes the simulated board layout. Table order defines ids.
type Config struct {
	TimerClockHz uint32        `yaml:"timer_clock_hz"`
	Ports        []PortConfig  `yaml:"ports"`
	Timers       []TimerConfig `yaml:"timers"`
}

type PortConfig struct {
	Name string `yaml:"name"`
	IRQ  int    `yaml:"irq"`
	// TxLatency is the number of TxReady polls that report busy after each
	// byte written to the data register.
	TxLatency int `yaml:"tx_latency"`
}

type TimerConfig struct {
	Name string `yaml:"name"`
	IRQ  int    `yaml:"irq"`
}

// DefaultConfig mirrors the stm32f4 board: USART1/3/6 and TIM2/4/5 on an
// 84 MHz timer clock.
func DefaultConfig() Config {
	return Config{
		TimerClockHz: 84_000_000,
		Ports: []PortConfig{
			{Name: "USART1", IRQ: 37},
			{Name: "USART3", IRQ: 39},
			{Name: "USART6", IRQ: 71},
		},
		Timers: []TimerConfig{
			{Name: "Timer2", IRQ: 28},
			{Name: "Timer4", IRQ: 30},
			{Name: "Timer5", IRQ: 50},
		},
	}
}

// LoadConfig decodes a YAML board description. Missing fields take the
// DefaultConfig values where that makes sense.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, &errcode.E{C: errcode.InvalidConfig, Op: "sim.load", Err: err}
	}
	if cfg.TimerClockHz == 0 {
		cfg.TimerClockHz = DefaultConfig().TimerClockHz
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks clock and naming constraints.
func (c Config) Validate() error {
	if c.TimerClockHz == 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "sim.config", Msg: "timer_clock_hz must be > 0"}
	}
	irqs := map[int]string{}
	seen := map[string]bool{}
	check := func(name string, irq int) error {
		if name == "" {
			return &errcode.E{C: errcode.InvalidConfig, Op: "sim.config", Msg: "empty name"}
		}
		if seen[name] {
			return &errcode.E{C: errcode.InvalidConfig, Op: "sim.config", Msg: "duplicate name " + name}
		}
		if other, dup := irqs[irq]; dup {
			return &errcode.E{C: errcode.InvalidConfig, Op: "sim.config", Msg: name + " shares irq with " + other}
		}
		seen[name] = true
		irqs[irq] = name
		return nil
	}
	for _, p := range c.Ports {
		if p.TxLatency < 0 {
			return &errcode.E{C: errcode.InvalidConfig, Op: "sim.config", Msg: p.Name + ": negative tx_latency"}
		}
		if err := check(p.Name, p.IRQ); err != nil {
			return err
		}
	}
	for _, t := range c.Timers {
		if err := check(t.Name, t.IRQ); err != nil {
			return err
		}
	}
	return nil
}
