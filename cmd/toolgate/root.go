package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolgate/config"
)

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "toolgate",
		Short: "Bearer-token gateway for tool invocations",
		Long: `toolgate authenticates tool invocations with JWTs from any configured
issuer or a static shared secret, then authorizes each call against the
scope its tool requires.

Configuration is read from --config and TOOLGATE_* environment variables,
for example TOOLGATE_AUTH_DISABLED=true or TOOLGATE_SERVER_ADDR=:9090.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to a YAML config file")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newVerifyCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func (o *rootOptions) load(ctx context.Context) (*config.Config, error) {
	var loadOpts []config.LoaderOption
	if o.configFile != "" {
		loadOpts = append(loadOpts, config.WithConfigFile(o.configFile))
	}
	return config.Load(ctx, loadOpts...)
}
