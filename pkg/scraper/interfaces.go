package scraper

import (
	"context"

	"igarchive/pkg/checkpoint"
	"igarchive/pkg/models"
)

// Fetcher fetches one page of a target's collection
type Fetcher interface {
	FetchPage(ctx context.Context, target string, cursor *string, batchSize int) (*models.Page, error)
}

// CheckpointStore persists the resume position of each target
type CheckpointStore interface {
	Load(key string) (*checkpoint.State, error)
	Save(key string, state *checkpoint.State) error
}

// ArchiveStore persists the accumulated records of each target
type ArchiveStore interface {
	Load(key string) ([]models.Record, error)
	Save(key string, records []models.Record) error
	Merge(existing, incoming []models.Record) ([]models.Record, int)
}
