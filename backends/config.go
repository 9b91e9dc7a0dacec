// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// KERNELS_BACKENDS is the environment variable with the backends configuration to use.
//
// The format is a ";" separated list of "<backend_name>:<key>=<value>,<key>=<value>" entries, e.g.:
//
//	KERNELS_BACKENDS="cuda:version=12040;rocm:version=60200,default=device"
//
// Supported keys:
//
//   - version: runtime capability version of the backend (e.g.: CUDA_VERSION convention, 11080 for 11.8).
//   - default: default memory location of the backend, "host" or "device".
//
//goland:noinspection GoSnakeCaseUsage
const KERNELS_BACKENDS = "KERNELS_BACKENDS"

// DefaultConfig is used as the backends configuration if KERNELS_BACKENDS is not set.
//
// See KERNELS_BACKENDS for the format of the configuration string.
var DefaultConfig string

// LoadCapabilities returns the capabilities of every known backend.
//
// It starts from the builtin defaults and applies, in order of preference:
//
// 1. The environment KERNELS_BACKENDS, if defined.
// 2. The variable DefaultConfig, if not empty.
func LoadCapabilities() (map[Backend]Capabilities, error) {
	config, found := os.LookupEnv(KERNELS_BACKENDS)
	if !found {
		config = DefaultConfig
	}
	return CapabilitiesWithConfig(config)
}

// CapabilitiesWithConfig returns the capabilities of every known backend, with the builtin defaults
// overridden by the given configuration. See KERNELS_BACKENDS for the format.
func CapabilitiesWithConfig(config string) (map[Backend]Capabilities, error) {
	all := make(map[Backend]Capabilities, len(backendNames)-1)
	for _, backend := range All() {
		all[backend] = DefaultCapabilities(backend)
	}
	overrides, err := ParseConfig(config)
	if err != nil {
		return nil, err
	}
	for backend, caps := range overrides {
		all[backend] = caps
	}
	return all, nil
}

// ParseConfig parses a configuration string (see KERNELS_BACKENDS for the format) and returns the capabilities
// of each backend mentioned in it, starting from the builtin defaults.
func ParseConfig(config string) (map[Backend]Capabilities, error) {
	result := make(map[Backend]Capabilities)
	for _, entry := range strings.Split(config, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		backendName, options, _ := strings.Cut(entry, ":")
		backend, err := FromName(backendName)
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid backends configuration %q", config)
		}
		caps, found := result[backend]
		if !found {
			caps = DefaultCapabilities(backend)
		}
		for _, option := range strings.Split(options, ",") {
			option = strings.TrimSpace(option)
			if option == "" {
				continue
			}
			key, value, hasValue := strings.Cut(option, "=")
			if !hasValue {
				return nil, errors.Errorf("backend %s option %q is not of the form <key>=<value> in configuration %q",
					backend, option, config)
			}
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "version":
				caps.Version, err = strconv.Atoi(strings.TrimSpace(value))
				if err != nil || caps.Version < 0 {
					return nil, errors.Errorf("backend %s has invalid version %q in configuration %q", backend, value, config)
				}
			case "default":
				caps.DefaultLocation, err = ParseLocation(value)
				if err != nil {
					return nil, errors.WithMessagef(err, "backend %s in configuration %q", backend, config)
				}
			default:
				return nil, errors.Errorf("backend %s has unknown option %q in configuration %q", backend, key, config)
			}
		}
		klog.V(1).Infof("backend %s configured: default location %s, version %d", backend, caps.DefaultLocation, caps.Version)
		result[backend] = caps
	}
	return result, nil
}
