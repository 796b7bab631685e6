package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcpgo/mcpgo/internal/client"
	"github.com/mcpgo/mcpgo/internal/config"
	"github.com/mcpgo/mcpgo/internal/logging"
)

var (
	configFile      string
	serverURL       string
	command         string
	commandArgs     []string
	transportFlag   string
	oauthEnabled    bool
	oauthScopes     string
	verbose         bool
	trace           bool
	callToolName    string
	callToolArgsRaw string
)

var rootCmd = &cobra.Command{
	Use:   "mcpclient-demo [target]",
	Short: "MCP client demo - connect to a Model Context Protocol server and inspect its catalog",
	Long: `mcpclient-demo connects to an MCP server over stdio, SSE, plain HTTP,
or streamable HTTP (or to every server listed in a --config file), lists
the tools, and optionally calls one.

Examples:
  mcpclient-demo --command "mcp-everything-server" --args "--stdio"
  mcpclient-demo https://example.com/mcp
  mcpclient-demo https://example.com/mcp/sse
  mcpclient-demo --oauth https://example.com/mcp --call echo --call-args '{"text":"hi"}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: run,
}

func init() {
	godotenv.Load()

	rootCmd.Flags().StringVar(&configFile, "config", "", "path to a YAML/JSON file listing multiple servers (overrides the single-server flags below)")
	rootCmd.Flags().StringVar(&command, "command", "", "command to launch for a stdio server")
	rootCmd.Flags().StringSliceVar(&commandArgs, "args", nil, "arguments for --command")
	rootCmd.Flags().StringVar(&transportFlag, "transport", "", "force a transport (stdio, sse, http, streamable_http) instead of auto-detecting")
	rootCmd.Flags().BoolVar(&oauthEnabled, "oauth", false, "authorize via OAuth 2.1 + PKCE before connecting")
	rootCmd.Flags().StringVar(&oauthScopes, "oauth-scopes", "", "comma-separated OAuth scopes to request")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output to stderr")
	rootCmd.Flags().BoolVar(&trace, "trace", false, "log every request/response frame")
	rootCmd.Flags().StringVar(&callToolName, "call", "", "call this tool after connecting and print its result")
	rootCmd.Flags().StringVar(&callToolArgsRaw, "call-args", "{}", "JSON object of arguments for --call")

	viper.BindPFlag("oauth_enabled", rootCmd.Flags().Lookup("oauth"))
	viper.BindPFlag("oauth_scopes", rootCmd.Flags().Lookup("oauth-scopes"))
	viper.BindPFlag("verbose", rootCmd.Flags().Lookup("verbose"))
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetEnvPrefix("MCPCLIENT")
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		serverURL = args[0]
	}

	var servers []config.ServerConfig
	var fastFailAuth = true

	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if !cfg.HasServers() {
			return fmt.Errorf("%s declares no servers", configFile)
		}
		servers = cfg.Servers
		fastFailAuth = cfg.FastFailAuth
		verbose = verbose || cfg.Verbose
		trace = trace || cfg.Trace
	} else {
		if command == "" && serverURL == "" {
			return fmt.Errorf("provide either a server URL or --command")
		}
		servers = []config.ServerConfig{{
			Name:            "default",
			Type:            config.TransportType(transportFlag),
			Command:         command,
			Args:            commandArgs,
			URL:             serverURL,
			OAuthEnabled:    viper.GetBool("oauth_enabled"),
			OAuthScopes:     viper.GetString("oauth_scopes"),
			OAuthClientName: "mcpclient-demo",
		}}
	}

	logger := logging.New("mcpclient-demo", verbose)
	if trace {
		if _, err := logger.EnableTrace(); err != nil {
			return fmt.Errorf("enable trace: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	defer cancel()

	c := client.New("mcpclient-demo", "1.0", logger)
	defer c.Close()

	results, err := c.ConnectAll(ctx, servers, fastFailAuth)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("connect: %w", r.Err)
		}
	}

	tools, err := c.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	fmt.Printf("Connected. %d tool(s) available:\n", len(tools))
	for _, t := range tools {
		fmt.Printf("  %-30s %s\n", t.Name, t.Description)
	}

	if callToolName == "" {
		return nil
	}

	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(callToolArgsRaw), &toolArgs); err != nil {
		return fmt.Errorf("parse --call-args: %w", err)
	}

	result, err := c.CallTool(ctx, callToolName, toolArgs, client.ServerSelector{})
	if err != nil {
		return fmt.Errorf("call tool %q: %w", callToolName, err)
	}

	fmt.Println(strings.TrimSpace(string(result)))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
