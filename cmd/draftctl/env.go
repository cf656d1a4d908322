package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/the-pantry/internal/backup"
	"github.com/debemdeboas/the-pantry/internal/config"
	"github.com/debemdeboas/the-pantry/internal/db"
	"github.com/debemdeboas/the-pantry/internal/logger"
	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/remote"
	"github.com/debemdeboas/the-pantry/internal/repository"
)

// env is the storage a command works on.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	store repository.DraftRepository
	local backup.Store

	closeStore func() error
}

func openEnv(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*env, error) {
	var out io.Writer = io.Discard
	if opts.Verbose {
		out = cmd.ErrOrStderr()
	}
	log := logger.NewWithWriter("debug", "console", out)
	config.SetLogger(log)
	db.SetLogger(log)
	repository.SetLogger(log)

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf(config.ErrOpenStorageFmt, err)
	}
	local, err := backup.Open(cfg.Backup)
	if err != nil {
		closeStore()
		return nil, fmt.Errorf(config.ErrOpenBackupFmt, err)
	}

	return &env{cfg: cfg, log: log, store: store, local: local, closeStore: closeStore}, nil
}

func (e *env) Close() error {
	return e.closeStore()
}

// remoteFor returns the store editor sessions commit to for owner.
func (e *env) remoteFor(owner model.UserID) repository.DraftRepository {
	if e.cfg.Remote.URL == "" {
		return e.store
	}
	return remote.NewClient(e.cfg.Remote.URL, owner, e.cfg.Remote.Timeout.Std())
}

// withEnv runs fn with an open env and releases it afterwards.
func withEnv(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, e *env) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.Close())
	}()
	return fn(ctx, e)
}
