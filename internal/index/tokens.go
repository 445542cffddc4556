package index

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var bucketTokens = []byte("tokens")

// TokenInfo is the stored metadata for one API token. Only the SHA-256
// hash of the raw token is persisted.
type TokenInfo struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"token_hash"`
	UserID    int64     `json:"user_id"`
	Desc      string    `json:"description"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenStore persists API tokens in a bbolt database, keyed by token hash.
type TokenStore struct {
	db *bolt.DB
}

// OpenTokenStore opens or creates a token database at the given path.
func OpenTokenStore(path string) (*TokenStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTokens)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create token bucket: %w", err)
	}

	return &TokenStore{db: db}, nil
}

// Close closes the token database.
func (s *TokenStore) Close() error {
	return s.db.Close()
}

// HashToken returns the hex-encoded SHA-256 hash of a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Create mints a token for a user. The raw token is returned once and
// never stored.
func (s *TokenStore) Create(userID int64, desc string) (string, *TokenInfo, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	raw := "nse_" + hex.EncodeToString(buf)

	info := &TokenInfo{
		ID:        uuid.New().String(),
		TokenHash: HashToken(raw),
		UserID:    userID,
		Desc:      desc,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(info)
	if err != nil {
		return "", nil, fmt.Errorf("marshal token: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokens).Put([]byte(info.TokenHash), data)
	})
	if err != nil {
		return "", nil, fmt.Errorf("save token: %w", err)
	}

	return raw, info, nil
}

// GetByHash returns the token with the given hash, or nil when unknown.
func (s *TokenStore) GetByHash(hash string) (*TokenInfo, error) {
	var info *TokenInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTokens).Get([]byte(hash))
		if data == nil {
			return nil
		}
		info = &TokenInfo{}
		return json.Unmarshal(data, info)
	})
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	return info, nil
}

// Authenticate resolves a raw bearer token to the owning user id.
func (s *TokenStore) Authenticate(raw string) (int64, bool, error) {
	info, err := s.GetByHash(HashToken(raw))
	if err != nil {
		return 0, false, err
	}
	if info == nil {
		return 0, false, nil
	}
	return info.UserID, true, nil
}

// Delete removes the token with the given id. Removing an unknown id is
// not an error.
func (s *TokenStore) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketTokens)
		cursor := bucket.Cursor()
		for key, value := cursor.First(); key != nil; key, value = cursor.Next() {
			var info TokenInfo
			if err := json.Unmarshal(value, &info); err != nil {
				continue
			}
			if info.ID == id {
				return bucket.Delete(key)
			}
		}
		return nil
	})
}

// List returns every stored token, ordered by hash.
func (s *TokenStore) List() ([]*TokenInfo, error) {
	var tokens []*TokenInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokens).ForEach(func(_, value []byte) error {
			var info TokenInfo
			if err := json.Unmarshal(value, &info); err != nil {
				return err
			}
			tokens = append(tokens, &info)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	return tokens, nil
}
