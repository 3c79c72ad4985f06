package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nabeul-archive/poemap/internal/validate"
)

// Password constraints.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit
)

// Credential errors.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password does not meet requirements")
)

// Credential is a stored identity record. The ID doubles as the profile ID.
type Credential struct {
	ID           string
	Email        string
	PasswordHash []byte
}

// CredentialStore persists signup credentials.
type CredentialStore interface {
	// Create stores a new credential. Fails with ErrEmailTaken on duplicate
	// email.
	Create(ctx context.Context, cred *Credential) error

	// GetByEmail fetches a credential by email.
	GetByEmail(ctx context.Context, email string) (*Credential, error)
}

// Credentials handles signup and login against a credential store.
type Credentials struct {
	store CredentialStore
}

// NewCredentials creates a credential service.
func NewCredentials(store CredentialStore) *Credentials {
	return &Credentials{store: store}
}

// Register validates the email and password, hashes the password, and
// stores the credential. Returns the new identity ID.
func (c *Credentials) Register(ctx context.Context, email, password string) (string, error) {
	email, err := validate.Email(email)
	if err != nil {
		return "", err
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	cred := &Credential{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := c.store.Create(ctx, cred); err != nil {
		return "", err
	}
	return cred.ID, nil
}

// Authenticate verifies the email/password pair and returns the identity ID.
// Both unknown emails and wrong passwords yield ErrInvalidCredentials.
func (c *Credentials) Authenticate(ctx context.Context, email, password string) (string, error) {
	email, err := validate.Email(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	cred, err := c.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return cred.ID, nil
}

// InMemoryCredentialStore implements CredentialStore with in-memory storage.
// Thread-safe for concurrent access.
type InMemoryCredentialStore struct {
	mu      sync.RWMutex
	byEmail map[string]*Credential
}

// NewInMemoryCredentialStore creates an in-memory credential store.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{
		byEmail: make(map[string]*Credential),
	}
}

// Create stores a new credential.
func (s *InMemoryCredentialStore) Create(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[cred.Email]; ok {
		return ErrEmailTaken
	}
	copied := *cred
	s.byEmail[cred.Email] = &copied
	return nil
}

// GetByEmail fetches a credential by email.
func (s *InMemoryCredentialStore) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byEmail[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	copied := *cred
	return &copied, nil
}

// PostgresCredentialStore implements CredentialStore using PostgreSQL.
type PostgresCredentialStore struct {
	db *sql.DB
}

// NewPostgresCredentialStore creates a Postgres credential store.
func NewPostgresCredentialStore(db *sql.DB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

// Create stores a new credential.
func (s *PostgresCredentialStore) Create(ctx context.Context, cred *Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, email, password_hash) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING`,
		cred.ID, cred.Email, cred.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	// ON CONFLICT swallows the duplicate; detect it by reading back.
	existing, err := s.GetByEmail(ctx, cred.Email)
	if err != nil {
		return err
	}
	if existing.ID != cred.ID {
		return ErrEmailTaken
	}
	return nil
}

// GetByEmail fetches a credential by email.
func (s *PostgresCredentialStore) GetByEmail(ctx context.Context, email string) (*Credential, error) {
	var cred Credential
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM credentials WHERE email = $1`,
		email,
	).Scan(&cred.ID, &cred.Email, &cred.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credential: %w", err)
	}
	return &cred, nil
}
