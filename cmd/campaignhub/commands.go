package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"campaignhub/internal/agent"
	"campaignhub/internal/server/bootstrap"

	"github.com/spf13/cobra"
)

func (c *cli) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, meta, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return bootstrap.Serve(ctx, cfg, meta, nil, c.env.logOutput)
		},
	}
}

// container loads configuration and wires the components for one-shot commands.
func (c *cli) container(cmd *cobra.Command) (*bootstrap.Container, func(), error) {
	cfg, _, err := c.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	obs, cleanup, err := bootstrap.InitObservability(cfg.Observability, c.env.logOutput, nil)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), gray("tracing disabled: "+err.Error()))
	}
	container, err := bootstrap.BuildContainer(cfg, obs)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return container, cleanup, nil
}

func (c *cli) invokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <agent> [payload-json]",
		Short: "Invoke one agent and print its normalised result",
		Long:  "Invoke one agent by logical name, legacy alias or controller id. The payload defaults to {}.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{}
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
					return fmt.Errorf("payload must be a JSON object: %w", err)
				}
			}
			container, cleanup, err := c.container(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := container.Agents.Invoke(cmd.Context(), args[0], payload)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res == nil {
				fmt.Fprintln(out, red("no result")+gray(" (the agent produced no usable JSON object)"))
				return nil
			}
			fmt.Fprintf(out, "%s %s\n", green("result"), gray("path="+res.Path))
			return printJSON(out, res.Raw)
		},
	}
}

func (c *cli) profileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <username>",
		Short: "Fetch one public Instagram profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, cleanup, err := c.container(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			profile, err := container.Service.InstagramProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", bold("@"+profile.Username), gray("source="+profile.Source))
			return printJSON(cmd.OutOrStdout(), profile)
		},
	}
}

func (c *cli) agentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List logical agent names and their controller ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			registry := agent.NewRegistry(cfg.Agents.Controllers)
			for _, name := range registry.Names() {
				id, _ := registry.Resolve(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", cyan(name), id)
			}
			return nil
		},
	}
}
