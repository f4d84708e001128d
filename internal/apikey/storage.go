package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix marks plaintext keys issued by this gateway.
const KeyPrefix = "llmux-"

const keySecretBytes = 24

// ErrKeyNotFound is returned when no stored key matches the given ID or name.
var ErrKeyNotFound = errors.New("api key not found")

// Record is a stored key: only the salted digest is persisted, never the
// plaintext.
type Record struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Salt      string `json:"salt"`
	Hash      string `json:"hash"`
	CreatedAt string `json:"created_at"`
}

type keysFile struct {
	Keys []Record `json:"keys"`
}

// Store manages API key records persisted to a JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file. The file is created on
// first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Generate creates a new key under the given name and returns the record and
// the plaintext key. The plaintext is shown once and cannot be recovered.
func (s *Store) Generate(name string) (*Record, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, "", err
	}

	secret := make([]byte, keySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, "", err
	}
	plaintext := KeyPrefix + hex.EncodeToString(secret)

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, "", err
	}

	rec := Record{
		ID:        uuid.NewString(),
		Name:      name,
		Salt:      hex.EncodeToString(salt),
		Hash:      digest(hex.EncodeToString(salt), plaintext),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	file.Keys = append(file.Keys, rec)

	if err := s.save(file); err != nil {
		return nil, "", err
	}
	return &rec, plaintext, nil
}

// Verify reports whether the plaintext key matches any stored record.
func (s *Store) Verify(plaintext string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, false
	}
	for i := range file.Keys {
		rec := &file.Keys[i]
		want := digest(rec.Salt, plaintext)
		if subtle.ConstantTimeCompare([]byte(want), []byte(rec.Hash)) == 1 {
			out := *rec
			return &out, true
		}
	}
	return nil, false
}

// List returns all stored records.
func (s *Store) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	return file.Keys, nil
}

// Revoke removes the key with the given ID or name.
func (s *Store) Revoke(idOrName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	kept := file.Keys[:0]
	found := false
	for _, rec := range file.Keys {
		if rec.ID == idOrName || rec.Name == idOrName {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return ErrKeyNotFound
	}
	file.Keys = kept
	return s.save(file)
}

// Rename changes the display name of the key with the given ID or name.
func (s *Store) Rename(idOrName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	for i := range file.Keys {
		if file.Keys[i].ID == idOrName || file.Keys[i].Name == idOrName {
			file.Keys[i].Name = newName
			return s.save(file)
		}
	}
	return ErrKeyNotFound
}

// HasKeys reports whether any keys are stored. When false, request
// authentication is disabled.
func (s *Store) HasKeys() bool {
	recs, err := s.List()
	return err == nil && len(recs) > 0
}

func (s *Store) load() (*keysFile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &keysFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	var file keysFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse key file %s: %w", s.path, err)
	}
	return &file, nil
}

func (s *Store) save(file *keysFile) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create key directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func digest(saltHex, plaintext string) string {
	sum := sha256.Sum256([]byte(saltHex + plaintext))
	return hex.EncodeToString(sum[:])
}
