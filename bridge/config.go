package bridge

import (
	"encoding/json"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/oak-ros/daibridge/dai"
)

// Config is the bridge's file configuration. String values may reference
// environment variables with ${VAR} syntax.
type Config struct {
	// DeviceID selects the device by serial; "fake" runs an in-memory one.
	DeviceID      string `json:"device_id"`
	RosbridgeAddr string `json:"rosbridge_addr"`

	FramePrefix string `json:"frame_prefix,omitempty"`
	// FrameNames overrides frame names per socket name ("rgb", "left",
	// "right"); sockets not listed keep their defaults.
	FrameNames map[string]string `json:"frame_names,omitempty"`
	QueueSize  int               `json:"queue_size,omitempty"`
}

// Validate ensures the config is semantically coherent.
func (c *Config) Validate(path string) error {
	if c.DeviceID == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "device_id")
	}
	if c.RosbridgeAddr == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "rosbridge_addr")
	}
	if c.QueueSize < 0 {
		return errors.New("queue_size must not be negative")
	}
	for name := range c.FrameNames {
		if _, err := dai.ParseSocket(name); err != nil {
			return errors.Wrap(err, "frame_names")
		}
	}
	return nil
}

// FrameNameTable returns the default table with the config's overrides
// applied.
func (c *Config) FrameNameTable() map[dai.CameraBoardSocket]string {
	table := DefaultFrameNames()
	for name, frame := range c.FrameNames {
		socket, err := dai.ParseSocket(name)
		if err != nil {
			continue
		}
		table[socket] = frame
	}
	return table
}

// ReadConfig reads, substitutes, and validates a config file.
func ReadConfig(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", path)
	}
	cfg := &Config{}
	if err := json.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config file %q", path)
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}
