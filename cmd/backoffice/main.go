package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"qazna.org/backoffice/internal/api"
	"qazna.org/backoffice/internal/audit"
	"qazna.org/backoffice/internal/config"
	"qazna.org/backoffice/internal/obs"
	"qazna.org/backoffice/internal/session"
)

var version = "0.3.1"

type app struct {
	cfg    config.Config
	log    zerolog.Logger
	sess   *session.Manager
	client *api.Client
	trail  *audit.Trail
}

// record appends a local audit entry. Recording must never fail a command.
func (a *app) record(action string, fields map[string]any) {
	if err := a.trail.Record(a.sess.Identity(), action, fields); err != nil {
		a.log.Warn().Err(err).Str("action", action).Msg("audit entry not written")
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := obs.InitLogger(cfg.LogLevel, true)
	obs.Init()
	obs.InitBuildInfo(version, "")

	store := session.NewFileStore(cfg.CredentialsPath)
	sess := session.NewManager(store, session.WithLogger(logger))
	if err := sess.Hydrate(); err != nil {
		logger.Warn().Err(err).Msg("could not read stored credentials; starting unauthenticated")
	}

	client, err := api.New(cfg.APIBaseURL, sess,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		api.WithLogger(logger),
		api.WithUserAgent("qazna-backoffice/"+version),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client setup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trail := audit.Open(filepath.Join(filepath.Dir(cfg.CredentialsPath), "audit.jsonl"), logger)

	a := &app{cfg: cfg, log: logger, sess: sess, client: client, trail: trail}

	switch os.Args[1] {
	case "login":
		err = a.login(ctx, os.Args[2:])
	case "logout":
		err = a.logout()
	case "whoami":
		err = a.whoami(ctx)
	case "watch":
		err = a.watch(ctx, os.Args[2:])
	case "users", "admins", "loans", "cards", "deposits", "transactions", "roles", "permissions":
		err = a.resource(ctx, os.Args[1], os.Args[2:])
	case "version":
		fmt.Println("qazna-backoffice", version)
	default:
		usage()
	}

	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			fmt.Fprintln(os.Stderr, "session expired; run 'backoffice login' to continue")
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: backoffice <command> [args]

Session:
  login -email <email> [-password <password>]
  logout
  whoami

Live notifications:
  watch

Resources:
  users         list | get <id> | create | delete <id>
  admins        list | get <id> | create
  loans         list | get <id> | approve <id> | reject <id>
  cards         list | get <id> | block <id>
  deposits      list | get <id>
  transactions  list | get <id>
  roles         list | create | delete <id> | perms <id>
  permissions   list

Environment: QAZNA_ADMIN_API_URL, QAZNA_ADMIN_STREAM_URL (see config package).
`)
	os.Exit(2)
}
