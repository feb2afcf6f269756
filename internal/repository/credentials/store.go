package credentials

import (
	"context"

	"github.com/mamadbah2/greenconsole/internal/domain/models"
)

// StorageKey is the fixed key the credential record lives under in every backend.
const StorageKey = "greenapi-credentials"

// Store persists the single credential record. Save replaces the whole record.
type Store interface {
	Load(ctx context.Context) (models.Credentials, bool, error)
	Save(ctx context.Context, creds models.Credentials) error
}
