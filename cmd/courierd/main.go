// Command courierd runs the courier daemon in the foreground. It is
// the systemd-friendly entry point; `courier daemon start` launches the
// same runtime through the CLI binary instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"courier/internal/config"
	"courier/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	socketPath := flag.String("socket", "", "override the control socket path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	development := flag.Bool("dev", false, "use development-friendly console logging")
	flag.Parse()

	cfg, resolvedPath, _, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	applySocketOverride(cfg, *socketPath)

	err = daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		ConfigPath:  resolvedPath,
		LogLevel:    *logLevel,
		Development: *development,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applySocketOverride(cfg *config.Config, socket string) {
	if trimmed := strings.TrimSpace(socket); trimmed != "" {
		cfg.Paths.Socket = trimmed
	}
}
