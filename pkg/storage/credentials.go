package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// CredentialKind tags what a stored credential is for.
type CredentialKind string

const (
	// CredentialOpenRouter is an OpenRouter API key.
	CredentialOpenRouter CredentialKind = "OPENROUTER"
	// CredentialTelegram is a Telegram bot token.
	CredentialTelegram CredentialKind = "TELEGRAM"
)

// ErrCredentialNotFound is returned when a credential does not exist or is
// owned by a different user.
var ErrCredentialNotFound = fmt.Errorf("credential not found")

// Credential is the metadata for a stored secret. The secret value never
// appears here.
type Credential struct {
	ID        types.CredentialID
	UserID    types.UserID
	Name      string
	Kind      CredentialKind
	CreatedAt time.Time
}

// CredentialService stores credential metadata in SQLite and the secret in
// a SecretStore, keyed by credential id. It satisfies the executors'
// credential resolution interface.
type CredentialService struct {
	db      *sql.DB
	secrets SecretStore
}

// NewCredentialService creates a credential service.
func NewCredentialService(store *Store, secrets SecretStore) *CredentialService {
	return &CredentialService{db: store.DB(), secrets: secrets}
}

// Create stores a new credential and its secret.
func (s *CredentialService) Create(ctx context.Context, userID types.UserID, name string, kind CredentialKind, secret string) (*Credential, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("credential name cannot be empty")
	}
	if secret == "" {
		return nil, fmt.Errorf("credential secret cannot be empty")
	}

	cred := &Credential{
		ID:        types.NewCredentialID(),
		UserID:    userID,
		Name:      name,
		Kind:      kind,
		CreatedAt: time.Now(),
	}

	if err := s.secrets.Set(cred.ID.String(), secret); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (id, user_id, name, kind, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		cred.ID.String(), cred.UserID.String(), cred.Name, string(cred.Kind),
		cred.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		// Roll the secret back so an orphaned keyring entry isn't left.
		_ = s.secrets.Delete(cred.ID.String())
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}

	return cred, nil
}

// ResolveSecret returns the secret for a credential owned by userID. Callers
// must not cache or log the returned value.
func (s *CredentialService) ResolveSecret(ctx context.Context, id types.CredentialID, userID types.UserID) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM credentials WHERE id = ?", id.String()).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up credential: %w", err)
	}
	if owner != userID.String() {
		return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
	}

	return s.secrets.Get(id.String())
}

// List returns a user's credentials, most recent first.
func (s *CredentialService) List(ctx context.Context, userID types.UserID) ([]*Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, kind, created_at
		FROM credentials WHERE user_id = ? ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var credentials []*Credential
	for rows.Next() {
		var (
			id, owner, name, kind, createdAt string
		)
		if err := rows.Scan(&id, &owner, &name, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		cred := &Credential{
			ID:     types.CredentialID(id),
			UserID: types.UserID(owner),
			Name:   name,
			Kind:   CredentialKind(kind),
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			cred.CreatedAt = t
		}
		credentials = append(credentials, cred)
	}
	return credentials, rows.Err()
}

// Delete removes a credential and its secret, ownership-checked.
func (s *CredentialService) Delete(ctx context.Context, id types.CredentialID, userID types.UserID) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE id = ? AND user_id = ?",
		id.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, id)
	}
	return s.secrets.Delete(id.String())
}
