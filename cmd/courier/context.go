package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/ipc"
	"courier/internal/queue"
)

// commandContext carries lazily-loaded configuration and connection
// plumbing shared by every CLI command.
type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{socketFlag: socketFlag, configFlag: configFlag}
}

func (ctx *commandContext) ensureConfig() (*config.Config, error) {
	ctx.configOnce.Do(func() {
		flagValue := ""
		if ctx.configFlag != nil {
			flagValue = strings.TrimSpace(*ctx.configFlag)
		}
		cfg, path, _, err := config.Load(flagValue)
		if err != nil {
			ctx.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			ctx.configErr = err
			return
		}
		ctx.config = cfg
		ctx.configPath = path
	})
	return ctx.config, ctx.configErr
}

func (ctx *commandContext) configValue() *config.Config {
	return ctx.config
}

func (ctx *commandContext) resolvedConfigPath() string {
	return ctx.configPath
}

func (ctx *commandContext) socketPath() string {
	if ctx.socketFlag == nil {
		return defaultSocketPath()
	}
	if strings.TrimSpace(*ctx.socketFlag) == "" {
		*ctx.socketFlag = defaultSocketPath()
	}
	return *ctx.socketFlag
}

func (ctx *commandContext) dialClient() (*ipc.Client, error) {
	socket := ctx.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(socket, err)
	}
	return client, nil
}

// withClient runs fn against a connected daemon, failing when the
// daemon is unreachable.
func (ctx *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := ctx.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// withStore runs fn against the daemon when one is reachable, and
// otherwise against the store opened directly. Exactly one of the two
// arguments is non-nil.
func (ctx *commandContext) withStore(fn func(client *ipc.Client, store *queue.Store) error) error {
	client, dialErr := ctx.dialClient()
	if dialErr == nil {
		defer client.Close()
		return fn(client, nil)
	}

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	return fn(nil, store)
}

func wrapDialError(socket string, err error) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `courier daemon start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func defaultSocketPath() string {
	if cfg, _, _, err := config.Load(""); err == nil {
		return cfg.Paths.Socket
	}
	if dataDir, err := config.ExpandPath("~/.local/share/courier"); err == nil {
		return filepath.Join(dataDir, "courier.sock")
	}
	return filepath.Join(os.TempDir(), "courier.sock")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for current := cmd; current != nil; current = current.Parent() {
		if current.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
