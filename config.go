package closbench

// file config.go holds the build configuration document: the declarative
// description of a topology to synthesize, read from json or yaml.

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// A BuildConfig describes one topology to synthesize. SouthboundPorts
// overrides the default southbound port count of individual tiers, keyed by
// tier number; tiers not listed keep their defaults.
type BuildConfig struct {
	Protocol string `json:"protocol" yaml:"protocol"`

	K int `json:"sharedDegree" yaml:"sharedDegree"`
	T int `json:"numTiers" yaml:"numTiers"`

	SouthboundPorts map[int]int `json:"southboundPorts,omitempty" yaml:"southboundPorts,omitempty"`

	// SingleComputeSubnet puts all compute hosts under one leaf into a
	// single shared subnet instead of one subnet per link.
	SingleComputeSubnet bool `json:"singleComputeSubnet,omitempty" yaml:"singleComputeSubnet,omitempty"`
}

// ReadBuildConfig deserializes a byte slice holding a representation of a
// BuildConfig. If the input argument of dict (those bytes) is empty, the
// file whose name is given is read to acquire them.
func ReadBuildConfig(filename string, useYAML bool, dict []byte) (*BuildConfig, error) {
	var err error

	if len(dict) == 0 {
		dict, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	cfg := BuildConfig{}

	if useYAML {
		err = yaml.Unmarshal(dict, &cfg)
	} else {
		err = json.Unmarshal(dict, &cfg)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "deserializing build config %s", filename)
	}

	return &cfg, nil
}

// Validate checks the protocol identifier; the numeric parameters are
// validated by the builder itself.
func (cfg *BuildConfig) Validate() error {
	switch cfg.Protocol {
	case ProtocolPlain, ProtocolBGP, ProtocolMTP:
		return nil
	}

	return errors.Errorf("unknown protocol %q in build config", cfg.Protocol)
}

// Strategy returns the addressing strategy the configured protocol calls
// for.
func (cfg *BuildConfig) Strategy() (AddressingStrategy, error) {
	switch cfg.Protocol {
	case ProtocolPlain:
		return PlainAddressing{}, nil
	case ProtocolBGP:
		return CreateBGPAddressing(cfg.SingleComputeSubnet), nil
	case ProtocolMTP:
		return CreateMTPAddressing(cfg.SingleComputeSubnet), nil
	}

	return nil, errors.Errorf("unknown protocol %q in build config", cfg.Protocol)
}

// Builder constructs the Clos builder the configuration describes.
func (cfg *BuildConfig) Builder() (*ClosBuilder, error) {
	strategy, err := cfg.Strategy()
	if err != nil {
		return nil, err
	}

	cb, err := CreateClosBuilder(cfg.K, cfg.T, strategy)
	if err != nil {
		return nil, err
	}
	if len(cfg.SouthboundPorts) > 0 {
		cb.SetSouthboundPorts(cfg.SouthboundPorts)
	}

	return cb, nil
}

// TestName derives the name of one experiment run on the configured
// topology: the deterministic topology name plus the run's start time in
// epoch milliseconds.
func (cfg *BuildConfig) TestName(start time.Time) string {
	return fmt.Sprintf("%s_%d", topologyName(cfg.Protocol, cfg.K, cfg.T, cfg.SouthboundPorts, cfg.SingleComputeSubnet), start.UnixMilli())
}
