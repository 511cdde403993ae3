package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var RetireSigningKeySQL = `UPDATE "signing_keys" AS "sk"
SET
	"valid" = FALSE
WHERE
	"sk"."kid" = ?
RETURNING *;`

// SigningKeys is the durable registry of verification keys.
type SigningKeys interface {
	repository.Repository[*SigningKey]
	KeyRegistry

	// Retire marks a key invalid; tokens signed with it stop verifying but
	// the row is kept for auditability.
	Retire(ctx context.Context, kid uuid.UUID) error
}

type signingKeys struct {
	repository.Repository[*SigningKey]
	db *bun.DB
}

var _ SigningKeys = (*signingKeys)(nil)

func NewSigningKeysRepository(db *bun.DB) SigningKeys {
	repo := repository.NewRepository[*SigningKey](db, repository.ModelHandlers[*SigningKey]{
		NewRecord: func() *SigningKey { return &SigningKey{} },
		GetID: func(k *SigningKey) uuid.UUID {
			if k == nil {
				return uuid.Nil
			}
			return k.Kid
		},
		SetID: func(k *SigningKey, id uuid.UUID) {
			if k != nil {
				k.Kid = id
			}
		},
	})

	return &signingKeys{
		Repository: repo,
		db:         db,
	}
}

func (s *signingKeys) GetSigningKey(ctx context.Context, kid uuid.UUID) (*SigningKey, error) {
	record := &SigningKey{}
	err := s.db.NewSelect().
		Model(record).
		Where(`?TableAlias."kid" = ?`, kid.String()).
		Where(`?TableAlias."valid" = ?`, true).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"kid": kid.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load signing key")
	}

	return record, nil
}

func (s *signingKeys) InsertSigningKey(ctx context.Context, key *SigningKey) error {
	if key == nil {
		return goerrors.New("signing key must not be nil", goerrors.CategoryBadInput)
	}

	if key.Kid == uuid.Nil {
		key.Kid = uuid.New()
	}
	if key.CreatedAt == nil {
		now := time.Now()
		key.CreatedAt = &now
	}

	if _, err := s.Repository.CreateTx(ctx, s.db, key); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store signing key")
	}

	return nil
}

func (s *signingKeys) Retire(ctx context.Context, kid uuid.UUID) error {
	res, err := s.Repository.RawTx(ctx, s.db, RetireSigningKeySQL, kid.String())
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retire signing key")
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"kid": kid.String()})
	}

	return nil
}
