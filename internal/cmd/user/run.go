// Package user implements the `bulgur-cloud user` subcommand for managing
// accounts without a running server.
package user

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/bulgur-cloud/bulgur-cloud/internal/auth"
	"github.com/bulgur-cloud/bulgur-cloud/internal/config"
	"github.com/bulgur-cloud/bulgur-cloud/internal/daemon"
	"github.com/bulgur-cloud/bulgur-cloud/internal/logging"
	"github.com/bulgur-cloud/bulgur-cloud/internal/model"
)

func Run(args []string) error {
	if len(args) < 1 {
		usage()
		return errors.New("missing user subcommand")
	}
	switch args[0] {
	case "add":
		return runAdd(args[1:])
	case "remove":
		return runRemove(args[1:])
	default:
		usage()
		return fmt.Errorf("unknown user subcommand: %s", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "bulgur-cloud user <add|remove> [flags] <username>")
}

// openService loads config and connects the auth service to the same
// credential store the server uses. The server must not be running when
// the store backend holds an exclusive lock.
func openService(ctx context.Context, configPath string) (*auth.Service, config.Config, func(), error) {
	var c config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, config.Config{}, nil, err
		}
		c = loaded
	} else {
		config.ApplyDefaults(&c)
		if err := config.Validate(&c); err != nil {
			return nil, config.Config{}, nil, err
		}
	}
	lg, _, err := logging.New(logging.Options{Level: "warning"})
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	store, err := daemon.OpenStore(ctx, c.KV)
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	svc := auth.NewService(store, lg)
	return svc, c, func() { _ = store.Close() }, nil
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("user add", flag.ContinueOnError)
	var (
		configPath string
		password   string
		admin      bool
	)
	fs.StringVar(&configPath, "config", "", "path to bulgur-cloud.yaml")
	fs.StringVar(&password, "password", "", "password (prompted when empty)")
	fs.BoolVar(&admin, "admin", false, "create an admin account")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one username is required")
	}
	username := fs.Arg(0)

	if password == "" {
		var err error
		password, err = promptPassword("Password for " + username)
		if err != nil {
			return err
		}
	}

	ctx := context.Background()
	svc, c, closeStore, err := openService(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore()

	typ := model.TypeUser
	if admin {
		typ = model.TypeAdmin
	}
	u, err := svc.AddUser(ctx, username, password, typ)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(c.Storage.Root, u.Username), 0o755); err != nil {
		return fmt.Errorf("creating store folder: %w", err)
	}
	fmt.Printf("created %s %s\n", u.Type, u.Username)
	return nil
}

func runRemove(args []string) error {
	fs := flag.NewFlagSet("user remove", flag.ContinueOnError)
	var (
		configPath  string
		deleteFiles bool
	)
	fs.StringVar(&configPath, "config", "", "path to bulgur-cloud.yaml")
	fs.BoolVar(&deleteFiles, "delete-files", false, "also delete the user's stored files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one username is required")
	}
	username := fs.Arg(0)

	ctx := context.Background()
	svc, c, closeStore, err := openService(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := svc.RemoveUser(ctx, username); err != nil {
		return err
	}
	if deleteFiles {
		if err := os.RemoveAll(filepath.Join(c.Storage.Root, username)); err != nil {
			return fmt.Errorf("removing store folder: %w", err)
		}
	}
	fmt.Printf("removed %s\n", username)
	return nil
}

func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		for {
			fmt.Fprintf(os.Stderr, "%s: ", label)
			p1b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			fmt.Fprint(os.Stderr, "Confirm password: ")
			p2b, err := term.ReadPassword(fd)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return "", err
			}
			p1 := strings.TrimSpace(string(p1b))
			p2 := strings.TrimSpace(string(p2b))
			if p1 == "" {
				fmt.Fprintln(os.Stderr, "password cannot be empty")
				continue
			}
			if p1 != p2 {
				fmt.Fprintln(os.Stderr, "passwords do not match")
				continue
			}
			return p1, nil
		}
	}

	// Non-interactive fallback (e.g. piped input). Echo suppression isn't possible.
	r := bufio.NewReader(os.Stdin)
	fmt.Fprintf(os.Stderr, "%s: ", label)
	p, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("password cannot be empty")
	}
	return p, nil
}
