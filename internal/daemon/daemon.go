// Package daemon wires configuration, the key-value store, and the HTTP
// API into a running server.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
	"github.com/bulgur-cloud/bulgur-cloud/internal/config"
	"github.com/bulgur-cloud/bulgur-cloud/internal/httpapi"
	"github.com/bulgur-cloud/bulgur-cloud/internal/kv"
	"github.com/bulgur-cloud/bulgur-cloud/internal/kv/badgerkv"
	"github.com/bulgur-cloud/bulgur-cloud/internal/kv/memory"
	"github.com/bulgur-cloud/bulgur-cloud/internal/kv/sqlitekv"
	"github.com/bulgur-cloud/bulgur-cloud/internal/storage"
)

type Options struct {
	Config config.Config
	Logger *slog.Logger
}

// OpenStore opens the key-value backend named by the config.
func OpenStore(ctx context.Context, c config.KVConfig) (kv.Store, error) {
	switch c.Backend {
	case "memory":
		return memory.New(), nil
	case "badger":
		if err := os.MkdirAll(c.Path, 0o755); err != nil {
			return nil, err
		}
		return badgerkv.Open(c.Path)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
			return nil, err
		}
		return sqlitekv.Open(ctx, c.Path)
	default:
		return nil, fmt.Errorf("unknown kv backend %q", c.Backend)
	}
}

func Run(ctx context.Context, opt Options) error {
	c := opt.Config
	lg := opt.Logger
	if lg == nil {
		return errors.New("logger is required")
	}

	if err := os.MkdirAll(c.Storage.Root, 0o755); err != nil {
		return fmt.Errorf("creating storage root: %w", err)
	}

	store, err := OpenStore(ctx, c.KV)
	if err != nil {
		return fmt.Errorf("opening kv store: %w", err)
	}
	defer store.Close()

	svc := auth.NewService(store, lg)
	if err := svc.EnsureNobody(ctx); err != nil {
		return err
	}

	api := &httpapi.Server{
		Auth:               svc,
		Guard:              &storage.Guard{Root: c.Storage.Root},
		Logger:             lg,
		BindAddr:           c.HTTP.Bind,
		Port:               c.HTTP.Port,
		MaxUploadBytes:     int64(c.HTTP.MaxUploadMB) << 20,
		LoginRatePerMin:    c.Auth.LoginRatePerMinute,
		LoginBurst:         c.Auth.LoginBurst,
		TrustedProxyHeader: c.HTTP.TrustedProxyHeader,
	}
	lg.Info("starting bulgur-cloud",
		"storage_root", c.Storage.Root,
		"kv_backend", c.KV.Backend)
	return api.ListenAndServe()
}
