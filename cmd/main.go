// Package main is the entry point for the reasoning gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/reasonflow/reasoning-gateway/internal/config"
	"github.com/reasonflow/reasoning-gateway/internal/gateway"
	"github.com/reasonflow/reasoning-gateway/internal/monitoring"
)

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}

	// Try loading from ~/.config/reasoning-gateway/.env first
	configEnv := filepath.Join(homeDir, ".config", "reasoning-gateway", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}

	// Also load local .env (can override)
	_ = godotenv.Load()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve", "start":
			runServe(os.Args[2:])
			return
		case "mock":
			runMockUpstream(os.Args[2:])
			return
		case "ask":
			runAsk(os.Args[2:])
			return
		case "version", "-v", "--version":
			PrintVersion()
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	// Default: serve.
	runServe(os.Args[1:])
}

// resolveConfig resolves the serve config.
// Checks: user flag -> filesystem locations -> embedded default.
// Returns raw bytes and source description.
func resolveConfig(userConfig string) ([]byte, string, error) {
	if userConfig != "" {
		data, err := os.ReadFile(userConfig)
		if err != nil {
			return nil, "", fmt.Errorf("config file not found: %s", userConfig)
		}
		return data, userConfig, nil
	}

	homeDir, _ := os.UserHomeDir()

	searchPaths := []string{}
	if homeDir != "" {
		searchPaths = append(searchPaths,
			filepath.Join(homeDir, ".config", "reasoning-gateway", "config.yaml"),
		)
	}
	searchPaths = append(searchPaths, "configs/config.yaml", "config.yaml")

	for _, path := range searchPaths {
		if data, err := os.ReadFile(path); err == nil {
			return data, path, nil
		}
	}

	if data, err := getEmbeddedConfig("default"); err == nil {
		return data, "(embedded) default.yaml", nil
	}
	return nil, "", fmt.Errorf("no config file found, specify --config path")
}

// runServe starts the gateway server.
func runServe(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	configData, configSource, err := resolveConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromBytes(configData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration from %s: %v\n", configSource, err)
		os.Exit(1)
	}
	if *debug {
		cfg.Monitoring.Logging.Level = "debug"
	}
	monitoring.Global(cfg.Monitoring.Logging)

	log.Info().
		Str("version", Version).
		Str("config", configSource).
		Msg("reasoning gateway starting")
	log.Info().
		Int("port", cfg.Server.Port).
		Str("upstream", cfg.UpstreamURL()).
		Int("max_reasoning_chars", cfg.Gateway.MaxReasoningChars).
		Bool("parse_native_reasoning", cfg.Gateway.ParseNativeReasoning).
		Msg("configuration loaded")

	gw, err := gateway.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize gateway")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gw.Start(ctx); err != nil && err.Error() != "http: Server closed" {
		log.Fatal().Err(err).Msg("gateway error")
	}
	log.Info().Msg("reasoning gateway stopped")
}

// printHelp prints usage information.
func printHelp() {
	fmt.Println("reasoning-gateway - ordered SSE proxy for reasoning chat models")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  reasoning-gateway [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve        Start the gateway server (default)")
	fmt.Println("  mock         Start a mock upstream for local development")
	fmt.Println("  ask          Send a prompt through the gateway and render the stream")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Serve Options:")
	fmt.Println("  reasoning-gateway serve [--config FILE] [--debug]")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  reasoning-gateway serve                 Start with embedded defaults")
	fmt.Println("  reasoning-gateway mock --port 8001      Run the mock upstream")
	fmt.Println("  reasoning-gateway ask \"why is the sky blue?\"")
}
