package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/llmux/llmux/internal/apikey"
	"github.com/llmux/llmux/internal/config"
	"github.com/llmux/llmux/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: llmux <command> [flags]")
		fmt.Fprintln(os.Stderr, "Commands: serve, keys")
		os.Exit(1)
	}

	// Missing .env is fine; environment variables win regardless.
	godotenv.Load()

	switch os.Args[1] {
	case "serve":
		os.Exit(cmdServe())
	case "keys":
		os.Exit(cmdKeys())
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Commands: serve, keys")
		os.Exit(1)
	}
}

func cmdServe() int {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg := config.DefaultFromEnv()

	fs.StringVar(&cfg.Host, "host", cfg.Host, "Bind host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")
	fs.StringVar(&cfg.AnthropicBaseURL, "base-url", cfg.AnthropicBaseURL, "Anthropic API base URL")
	fs.StringVar(&cfg.DefaultModel, "default-model", cfg.DefaultModel, "Model used for non-Claude model names")
	fs.IntVar(&cfg.DefaultMaxTokens, "default-max-tokens", cfg.DefaultMaxTokens, "max_tokens when the client omits it")
	fs.StringVar(&cfg.ModelsFile, "models-file", cfg.ModelsFile, "YAML file with additional model definitions")
	fs.StringVar(&cfg.KeysFile, "keys-file", cfg.KeysFile, "JSON file holding gateway API keys")
	fs.Parse(os.Args[2:])

	setupLogging(cfg)

	if cfg.AnthropicAPIKey == "" {
		slog.Error("no provider API key configured; set ANTHROPIC_API_KEY")
		return 1
	}

	srv := server.New(cfg)
	if cfg.ModelsFile != "" {
		if err := srv.Registry.LoadCustomModels(cfg.ModelsFile); err != nil {
			slog.Error("failed to load models file", "path", cfg.ModelsFile, "error", err)
			return 1
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("llmux starting", "host", cfg.Host, "port", cfg.Port, "default_model", cfg.DefaultModel)
	if err := srv.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
		slog.Error("server error", "error", err)
		return 1
	}
	return 0
}

func cmdKeys() int {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: llmux keys <generate|list|revoke|rename> [flags]")
		return 1
	}

	cfg := config.DefaultFromEnv()
	fs := flag.NewFlagSet("keys "+os.Args[2], flag.ExitOnError)
	keysFile := fs.String("keys-file", cfg.KeysFile, "JSON file holding gateway API keys")

	args := os.Args[3:]
	switch os.Args[2] {
	case "generate":
		name := fs.String("name", "", "Display name for the new key")
		fs.Parse(args)
		store := apikey.NewStore(*keysFile)
		rec, plaintext, err := store.Generate(*name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			return 1
		}
		fmt.Printf("Created key %s (%s)\n", rec.ID, rec.Name)
		fmt.Println("Store this key now; it is not shown again:")
		fmt.Println(plaintext)
		return 0

	case "list":
		fs.Parse(args)
		store := apikey.NewStore(*keysFile)
		recs, err := store.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read keys: %v\n", err)
			return 1
		}
		if len(recs) == 0 {
			fmt.Println("No keys stored. Authentication is disabled.")
			return 0
		}
		for _, rec := range recs {
			fmt.Printf("%s  %-20s  created %s\n", rec.ID, rec.Name, rec.CreatedAt)
		}
		return 0

	case "revoke":
		fs.Parse(args)
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "Usage: llmux keys revoke <id-or-name>")
			return 1
		}
		store := apikey.NewStore(*keysFile)
		if err := store.Revoke(fs.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to revoke: %v\n", err)
			return 1
		}
		fmt.Println("Key revoked.")
		return 0

	case "rename":
		fs.Parse(args)
		if fs.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "Usage: llmux keys rename <id-or-name> <new-name>")
			return 1
		}
		store := apikey.NewStore(*keysFile)
		if err := store.Rename(fs.Arg(0), fs.Arg(1)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to rename: %v\n", err)
			return 1
		}
		fmt.Println("Key renamed.")
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown keys command: %s\n", os.Args[2])
		return 1
	}
}

func setupLogging(cfg *config.ServerConfig) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
