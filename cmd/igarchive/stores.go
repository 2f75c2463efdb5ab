package main

import (
	"igarchive/pkg/archive"
	"igarchive/pkg/checkpoint"
	"igarchive/pkg/codec"
	"igarchive/pkg/config"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/storage"
)

// stores bundles the on-disk state of every target
type stores struct {
	storage     *storage.Manager
	checkpoints *checkpoint.Store
	archives    *archive.Store
}

func openStores(cfg *config.Config, log logger.Logger) (*stores, error) {
	c, err := codec.New(cfg.Codec.Encodings...)
	if err != nil {
		return nil, configError(errs.Wrap(errs.ErrorTypeConfig, err, "invalid codec encodings"))
	}

	sm, err := storage.NewManager(cfg.Storage.DataDir, cfg.Storage.Version)
	if err != nil {
		return nil, fatalError(err)
	}

	return &stores{
		storage:     sm,
		checkpoints: checkpoint.NewStore(sm, c, log),
		archives:    archive.NewStore(sm, c, cfg.Fetch.IDField, log),
	}, nil
}
