package ports

import (
	"context"
	"errors"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// ErrDocumentNotFound is returned for unknown document ids
var ErrDocumentNotFound = errors.New("document not found")

// DocumentStore persists documents, the recent list and the current selection
type DocumentStore interface {
	Create(ctx context.Context, doc *entities.Document) error
	Get(ctx context.Context, id string) (*entities.Document, error)
	List(ctx context.Context) ([]*entities.Document, error)
	Update(ctx context.Context, doc *entities.Document) error
	Delete(ctx context.Context, id string) error

	TouchRecent(ctx context.Context, file entities.RecentFile, limit int) error
	Recent(ctx context.Context) ([]entities.RecentFile, error)

	SetCurrent(ctx context.Context, id string) error
	Current(ctx context.Context) (string, error)

	Close() error
}
