// Command forge-mcp-server exposes the GitHub REST API as MCP tools
// over stdio or streamable HTTP.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/forgemcp/forge-mcp-server/stdio"
	"github.com/forgemcp/forge-mcp-server/streamhttp"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "forge-mcp-server",
		Short:        "GitHub MCP server",
		Long:         "forge-mcp-server exposes GitHub repositories, issues, pull requests, actions, and search as MCP tools.",
		Version:      version,
		SilenceUsage: true,
	}

	ghCfg := gitHubConfigFromEnv()
	addGitHubFlags := func(f *pflag.FlagSet) {
		f.StringVar(&ghCfg.Host, "gh-host", ghCfg.Host, "GitHub host (github.com, *.ghe.com, or a GHES hostname with scheme)")
		f.StringSliceVar(&ghCfg.Toolsets, "toolsets", ghCfg.Toolsets, "tool groups to enable, or \"all\"")
		f.BoolVar(&ghCfg.DynamicToolsets, "dynamic-toolsets", ghCfg.DynamicToolsets, "start with a minimal tool list and load groups on demand")
		f.BoolVar(&ghCfg.ReadOnly, "read-only", ghCfg.ReadOnly, "drop every tool that mutates GitHub state")
		f.DurationVar(&ghCfg.MinRequestInterval, "min-request-interval", ghCfg.MinRequestInterval, "minimum spacing between GitHub API calls")
		f.StringVar(&ghCfg.LogFile, "log-file", ghCfg.LogFile, "write logs to this file instead of stderr")
		f.BoolVar(&ghCfg.Debug, "debug", ghCfg.Debug, "enable debug logging")
	}

	root.AddCommand(stdioCmd(&ghCfg, addGitHubFlags))
	root.AddCommand(httpCmd(&ghCfg, addGitHubFlags))
	return root
}

func stdioCmd(ghCfg *gitHubConfig, addGitHubFlags func(*pflag.FlagSet)) *cobra.Command {
	var (
		idleTimeout time.Duration
		logWire     bool
	)
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve a single MCP session over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := newLogger(*ghCfg)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			factory, err := buildFactory(*ghCfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return stdio.Run(ctx, factory, stdio.Config{
				IdleTimeout: idleTimeout,
				LogWire:     logWire,
				Logger:      logger,
			})
		},
	}
	addGitHubFlags(cmd.Flags())
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "exit after this long without an inbound message (0 disables)")
	cmd.Flags().BoolVar(&logWire, "enable-command-logging", false, "log every wire message at debug level")
	return cmd
}

func httpCmd(ghCfg *gitHubConfig, addGitHubFlags func(*pflag.FlagSet)) *cobra.Command {
	var httpCfg streamhttp.Config
	// Bearer tokens come from FORGE_MCP_HTTP_TOKEN and
	// FORGE_MCP_HTTP_CUTOVER_TOKEN only; there is no flag for them.
	_ = envdecode.Decode(&httpCfg)

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Serve MCP sessions over streamable HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := newLogger(*ghCfg)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			factory, err := buildFactory(*ghCfg, logger)
			if err != nil {
				return err
			}

			mgr, err := streamhttp.New(httpCfg, factory, streamhttp.WithLogger(logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return mgr.ListenAndServe(ctx)
		},
	}
	addGitHubFlags(cmd.Flags())
	f := cmd.Flags()
	f.StringVar(&httpCfg.BindHost, "host", httpCfg.BindHost, "bind address")
	f.IntVar(&httpCfg.Port, "port", httpCfg.Port, "listen port")
	f.StringVar(&httpCfg.EndpointPath, "path", httpCfg.EndpointPath, "primary MCP endpoint path")
	f.StringVar(&httpCfg.CutoverPath, "cutover-path", httpCfg.CutoverPath, "secondary MCP endpoint path for credential rollover")
	f.BoolVar(&httpCfg.RequireAuth, "require-auth", httpCfg.RequireAuth, "refuse to start on a public bind without a bearer token")
	f.StringVar(&httpCfg.TLSCertFile, "tls-cert", httpCfg.TLSCertFile, "TLS certificate file")
	f.StringVar(&httpCfg.TLSKeyFile, "tls-key", httpCfg.TLSKeyFile, "TLS key file")
	f.StringSliceVar(&httpCfg.AllowedOrigins, "allowed-origins", httpCfg.AllowedOrigins, "allowed Origin header values (empty allows any)")
	f.StringSliceVar(&httpCfg.AllowedHosts, "allowed-hosts", httpCfg.AllowedHosts, "allowed Host header values (empty allows any)")
	f.IntVar(&httpCfg.MaxSessions, "max-sessions", httpCfg.MaxSessions, "maximum concurrent sessions")
	f.DurationVar(&httpCfg.IdleTimeout, "session-idle-timeout", httpCfg.IdleTimeout, "reap sessions idle for this long (0 disables)")
	f.StringVar(&httpCfg.MetadataPath, "metadata-path", httpCfg.MetadataPath, "serve OAuth protected-resource metadata at this path")
	f.StringSliceVar(&httpCfg.AuthServers, "auth-servers", httpCfg.AuthServers, "authorization server URLs for the metadata document")
	f.StringSliceVar(&httpCfg.Scopes, "scopes", httpCfg.Scopes, "scopes advertised in the metadata document")
	return cmd
}
