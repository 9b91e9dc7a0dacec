// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// kernels_registry inspects the kernel registry built by the providers of this module:
//
//	kernels_registry list --backend=cuda
//	kernels_registry resolve Dropout --opset=12 --inputs=float32,float32,bool --backend=cuda,cpu
//
// Configuration is read, in order of precedence, from the flags, from the environment variables
// prefixed with KERNELS_ (e.g. KERNELS_BACKENDS, KERNELS_POLICY) and from the YAML file given
// with --config.
package main

import (
	goflag "flag"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/kernelregistry/backends"
	"github.com/gomlx/kernelregistry/kernels"
	_ "github.com/gomlx/kernelregistry/providers/cpu/nn"
	_ "github.com/gomlx/kernelregistry/providers/cuda/nn"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// Configuration keys, also the names of the flags.
const (
	keyBackends = "backends"
	keyPolicy   = "policy"
	keyColor    = "color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}
}

// newRootCmd creates the command tree, with its own viper configuration.
func newRootCmd() *cobra.Command {
	cfg := viper.New()
	var cfgFile string
	rootCmd := &cobra.Command{
		Use:           "kernels_registry",
		Short:         "Inspects the registered kernels and resolves operators against them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cfg, cfgFile); err != nil {
				return err
			}
			return setColorProfile(cfg.GetString(keyColor))
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "YAML config file with the same keys as the flags")
	flags.String(keyBackends, backends.DefaultConfig,
		"Backends capabilities, in the format of the "+backends.KERNELS_BACKENDS+" environment variable, "+
			`e.g. "cuda:version=12040;rocm:default=host"`)
	flags.String(keyPolicy, "exact", `Registration conflict policy: "exact" or "any" (any versions overlap)`)
	flags.String(keyColor, "auto", `Colored output: "auto", "always" or "never"`)
	must.M(cfg.BindPFlags(flags))

	// klog flags (-v, -logtostderr, ...).
	goFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(goFlags)
	flags.AddGoFlagSet(goFlags)

	rootCmd.AddCommand(newListCmd(cfg), newResolveCmd(cfg))
	return rootCmd
}

func loadConfig(cfg *viper.Viper, cfgFile string) error {
	cfg.SetEnvPrefix("KERNELS")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
	if cfgFile == "" {
		return nil
	}
	cfg.SetConfigFile(cfgFile)
	if err := cfg.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %q", cfgFile)
	}
	klog.V(1).Infof("using config file %s", cfg.ConfigFileUsed())
	return nil
}

func setColorProfile(mode string) error {
	switch strings.ToLower(mode) {
	case "auto", "":
		lipgloss.SetColorProfile(termenv.EnvColorProfile())
	case "always":
		lipgloss.SetColorProfile(termenv.TrueColor)
	case "never":
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		return errors.Errorf("invalid --color=%q, valid values are auto, always or never", mode)
	}
	return nil
}

// newRegistry builds and seals a registry with all the providers imported by this program, configured
// with the backends and policy given in the configuration.
func newRegistry(cfg *viper.Viper) (*kernels.Registry, error) {
	capabilities, err := backends.CapabilitiesWithConfig(cfg.GetString(keyBackends))
	if err != nil {
		return nil, err
	}
	r := kernels.NewRegistry()
	for _, backend := range backends.All() {
		r.WithCapabilities(capabilities[backend])
	}
	switch policy := strings.ToLower(cfg.GetString(keyPolicy)); policy {
	case "exact", "":
		r.WithConflictPolicy(kernels.ExactOverlap)
	case "any":
		r.WithConflictPolicy(kernels.AnyVersionOverlap)
	default:
		return nil, errors.Errorf("invalid conflict policy %q, valid values are exact or any", policy)
	}
	if err := kernels.RegisterProviders(r); err != nil {
		return nil, err
	}
	r.Seal()
	return r, nil
}
