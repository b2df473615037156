// Package config loads the engine configuration from YAML.
//
// Every field has a default matching the stock hardware, so an empty file
// is a valid configuration; a loaded file only overrides what it names.
// The typed sections translate into the option lists the sensor
// constructors take, which perform the final validation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/mcusync/capture"
	"github.com/arloliu/mcusync/cs1237"
	"github.com/arloliu/mcusync/lis2dw"
)

// Config is the root configuration document.
type Config struct {
	Accelerometer Accelerometer `yaml:"accelerometer"`
	StrainGauge   StrainGauge   `yaml:"strain_gauge"`
	Capture       Capture       `yaml:"capture"`
}

// Accelerometer configures the LIS2DW12 sensor.
type Accelerometer struct {
	// OID is the sensor instance id on the command channel.
	OID uint8 `yaml:"oid"`
	// Rate is the output data rate in Hz.
	Rate int `yaml:"rate"`
	// AxesMap names the raw axis feeding each output axis: x, y, z or
	// their negations.
	AxesMap []string `yaml:"axes_map"`
	// BatchInterval is the batch timer period in seconds.
	BatchInterval float64 `yaml:"batch_interval"`
	// Smoothing is the clock regression horizon in device sample counts.
	Smoothing float64 `yaml:"smoothing"`
}

// StrainGauge configures the CS1237 gauge.
type StrainGauge struct {
	// OID is the gauge instance id on the command channel.
	OID uint8 `yaml:"oid"`
	// Sensitivity is the device-side trigger threshold.
	Sensitivity int64 `yaml:"sensitivity"`
	// SampleRate is the live report rate in samples per second.
	SampleRate int `yaml:"sample_rate"`
	// SettleSeconds is the self-check stimulus settle window.
	SettleSeconds float64 `yaml:"settle_seconds"`
	// Bands holds the threshold band bounds.
	Bands Bands `yaml:"bands"`
}

// Bands mirrors cs1237.Bands in the configuration file.
type Bands struct {
	SelfCheck     int64 `yaml:"self_check"`
	BlockFilament int64 `yaml:"block_filament"`
	Scratch       int64 `yaml:"scratch"`
	HeadBlock     int64 `yaml:"head_block"`
}

// Capture configures batch capture to disk.
type Capture struct {
	// Enabled turns capture on.
	Enabled bool `yaml:"enabled"`
	// Path is the capture file path.
	Path string `yaml:"path"`
	// Compression names the payload codec: none, zstd, s2 or lz4.
	Compression string `yaml:"compression"`
}

// Default returns the stock configuration.
func Default() Config {
	bands := cs1237.DefaultBands()

	return Config{
		Accelerometer: Accelerometer{
			OID:           1,
			Rate:          1600,
			AxesMap:       []string{"x", "y", "z"},
			BatchInterval: 0.1,
			Smoothing:     640,
		},
		StrainGauge: StrainGauge{
			OID:           2,
			Sensitivity:   -2500,
			SampleRate:    10,
			SettleSeconds: 3.0,
			Bands: Bands{
				SelfCheck:     bands.SelfCheck,
				BlockFilament: bands.BlockFilament,
				Scratch:       bands.Scratch,
				HeadBlock:     bands.HeadBlock,
			},
		},
		Capture: Capture{
			Compression: "s2",
		},
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse parses a YAML document over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the constraints the sensor constructors cannot express,
// such as the axes map arity and the capture codec name.
func (c Config) Validate() error {
	if len(c.Accelerometer.AxesMap) != 3 {
		return fmt.Errorf("axes_map needs 3 entries, got %d", len(c.Accelerometer.AxesMap))
	}
	if _, err := capture.ParseCompression(c.Capture.Compression); err != nil {
		return err
	}

	return nil
}

// SensorOptions returns the accelerometer option list.
func (a Accelerometer) SensorOptions() []lis2dw.Option {
	return []lis2dw.Option{
		lis2dw.WithAxesMap(a.AxesMap[0], a.AxesMap[1], a.AxesMap[2]),
		lis2dw.WithRate(a.Rate),
		lis2dw.WithBatchInterval(a.BatchInterval),
		lis2dw.WithSmoothing(a.Smoothing),
	}
}

// GaugeOptions returns the strain gauge option list.
func (g StrainGauge) GaugeOptions() []cs1237.Option {
	return []cs1237.Option{
		cs1237.WithSensitivity(g.Sensitivity),
		cs1237.WithSampleRate(g.SampleRate),
		cs1237.WithSettleTime(time.Duration(g.SettleSeconds * float64(time.Second))),
		cs1237.WithBands(cs1237.Bands{
			SelfCheck:     g.Bands.SelfCheck,
			BlockFilament: g.Bands.BlockFilament,
			Scratch:       g.Bands.Scratch,
			HeadBlock:     g.Bands.HeadBlock,
		}),
	}
}

// Codec returns the configured capture compression type.
func (c Capture) Codec() (capture.CompressionType, error) {
	return capture.ParseCompression(c.Compression)
}
