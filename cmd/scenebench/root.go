package main

import (
	"github.com/KOMKZ/go-yogan-assets/config"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootFlags struct {
	configFile string
	env        string
	envPrefix  string
}

func (f rootFlags) loadOptions() config.LoadOptions {
	return config.LoadOptions{File: f.configFile, Env: f.env, EnvPrefix: f.envPrefix}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	root := &cobra.Command{
		Use:           "scenebench",
		Short:         "Exercise the scene asset cache under a synthetic frame load",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "configs/assets.yaml", "configuration file")
	root.PersistentFlags().StringVar(&flags.env, "env", "", "environment overlay, loads <config dir>/<env>.yaml")
	root.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", config.DefaultEnvPrefix, "prefix of environment overrides")

	root.AddCommand(newRunCmd(&flags), newServeCmd(&flags))
	return root
}
