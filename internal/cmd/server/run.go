// Package server implements the `bulgur-cloud server` subcommand.
package server

import (
	"context"
	"flag"
	"strings"

	"github.com/bulgur-cloud/bulgur-cloud/internal/config"
	"github.com/bulgur-cloud/bulgur-cloud/internal/daemon"
	"github.com/bulgur-cloud/bulgur-cloud/internal/logging"
)

func Run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var (
		configPath  string
		logLevel    string
		storageRoot string
		bind        string
		port        int
		kvBackend   string
		kvPath      string
	)
	fs.StringVar(&configPath, "config", "", "path to bulgur-cloud.yaml")
	fs.StringVar(&logLevel, "log-level", "", "log level: debug|info|warning|error")
	fs.StringVar(&storageRoot, "storage-root", "", "folder holding each user's store")
	fs.StringVar(&bind, "bind", "", "bind address")
	fs.IntVar(&port, "port", 0, "HTTP port")
	fs.StringVar(&kvBackend, "kv-backend", "", "credential store backend: memory|badger|sqlite")
	fs.StringVar(&kvPath, "kv-path", "", "credential store path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var c config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		c = loaded
	} else {
		config.ApplyDefaults(&c)
	}

	// CLI overrides config.
	if storageRoot != "" {
		c.Storage.Root = storageRoot
	}
	if bind != "" {
		c.HTTP.Bind = bind
	}
	if port != 0 {
		c.HTTP.Port = port
	}
	if kvBackend != "" && kvBackend != c.KV.Backend {
		c.KV.Backend = kvBackend
		// The old backend's path does not carry over.
		c.KV.Path = ""
		config.ApplyDefaults(&c)
	}
	if kvPath != "" {
		c.KV.Path = kvPath
	}
	if strings.TrimSpace(logLevel) != "" {
		c.Log.Level = logLevel
	}
	if err := config.Validate(&c); err != nil {
		return err
	}

	lg, _, err := logging.New(logging.Options{Level: c.Log.Level, JSON: c.Log.JSON, DefaultSlog: true})
	if err != nil {
		return err
	}

	return daemon.Run(context.Background(), daemon.Options{Config: c, Logger: lg})
}
