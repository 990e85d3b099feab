package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"campaignhub/internal/config"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
	gray  = color.New(color.FgHiBlack).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliEnv is the process environment the commands read from.
type cliEnv struct {
	lookup    config.EnvLookup
	dotenvDir string
	logOutput io.Writer
}

func defaultEnv() cliEnv {
	return cliEnv{lookup: config.DefaultEnvLookup, dotenvDir: ".", logOutput: os.Stdout}
}

type cli struct {
	env   cliEnv
	viper *viper.Viper
}

func newRootCommand(env cliEnv) *cobra.Command {
	c := &cli{env: env, viper: viper.New()}

	root := &cobra.Command{
		Use:           "campaignhub",
		Short:         "Influencer campaign server backed by a hosted agent platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to the YAML config file")
	flags.String("addr", "", "listen address, e.g. :5000")
	flags.String("agent-base-url", "", "agent platform base URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.Bool("cache-tokens", false, "reuse access tokens until shortly before expiry")
	for _, name := range []string{"config", "addr", "agent-base-url", "log-level", "log-format", "cache-tokens"} {
		_ = c.viper.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		c.serveCommand(),
		c.invokeCommand(),
		c.profileCommand(),
		c.agentsCommand(),
		versionCommand(),
	)
	return root
}

// loadConfig merges defaults, the config file, .env files, the environment
// and any flags the caller set explicitly.
func (c *cli) loadConfig(cmd *cobra.Command) (config.Config, config.Metadata, error) {
	lookup, err := config.DotEnvLookup(c.env.lookup, c.env.dotenvDir)
	if err != nil {
		return config.Config{}, config.Metadata{}, fmt.Errorf("load .env: %w", err)
	}
	opts := []config.Option{config.WithEnv(lookup), config.WithOverrides(c.overrides(cmd))}
	if path := c.viper.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	return config.Load(opts...)
}

func (c *cli) overrides(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	str := func(name string) *string {
		if !changed(name) {
			return nil
		}
		v := c.viper.GetString(name)
		return &v
	}
	o.ServerAddr = str("addr")
	o.AgentBaseURL = str("agent-base-url")
	o.LogLevel = str("log-level")
	o.LogFormat = str("log-format")
	if changed("cache-tokens") {
		v := c.viper.GetBool("cache-tokens")
		o.CacheTokens = &v
	}
	return o
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "campaignhub %s\n", version)
		},
	}
}
