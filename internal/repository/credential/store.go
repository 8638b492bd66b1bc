// Package credential keeps one RSA signing key per local alias, sealed on
// disk under a passphrase.
package credential

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"relay_chat/internal/cryptographic/signature"
	"relay_chat/internal/protocol/message"
	"relay_chat/internal/utils/log"
)

const keySuffix = ".key.enc"

type (
	FileStore struct {
		dir        string
		passphrase string
		bits       int
		params     ScryptParams

		mu    sync.Mutex
		cache map[string]*rsa.PrivateKey
	}

	Option func(*FileStore)
)

var _ message.KeyStore = (*FileStore)(nil)

func WithKeyBits(bits int) Option {
	return func(s *FileStore) { s.bits = bits }
}

func WithScryptParams(p ScryptParams) Option {
	return func(s *FileStore) { s.params = p }
}

func NewFileStore(dir, passphrase string, opts ...Option) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &FileStore{
		dir:        dir,
		passphrase: passphrase,
		bits:       signature.DefaultKeyBits,
		params:     DefaultScryptParams(),
		cache:      make(map[string]*rsa.PrivateKey),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetOrCreateKeypair returns the key bound to alias and its PEM public key,
// generating and sealing a new key the first time alias is seen.
func (s *FileStore) GetOrCreateKeypair(alias string) (*rsa.PrivateKey, []byte, error) {
	if alias == "" || filepath.Base(alias) != alias {
		return nil, nil, fmt.Errorf("invalid key alias %q", alias)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	priv, err := s.load(alias)
	if err != nil {
		return nil, nil, err
	}
	if priv == nil {
		if priv, err = s.create(alias); err != nil {
			return nil, nil, err
		}
	}
	pub, err := signature.MarshalPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// Delete removes the key bound to alias. A missing key is not an error.
func (s *FileStore) Delete(alias string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, alias)
	err := os.Remove(s.path(alias))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) path(alias string) string {
	return filepath.Join(s.dir, alias+keySuffix)
}

func (s *FileStore) load(alias string) (*rsa.PrivateKey, error) {
	if priv, ok := s.cache[alias]; ok {
		return priv, nil
	}
	b, err := os.ReadFile(s.path(alias))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	der, err := open(s.passphrase, b)
	if err != nil {
		return nil, fmt.Errorf("key for %s: %w", alias, err)
	}
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("key for %s: %w", alias, err)
	}
	s.cache[alias] = priv
	return priv, nil
}

func (s *FileStore) create(alias string) (*rsa.PrivateKey, error) {
	priv, err := signature.NewRSAKeypair(s.bits)
	if err != nil {
		return nil, err
	}
	sealed, err := seal(s.passphrase, x509.MarshalPKCS1PrivateKey(priv), s.params)
	if err != nil {
		return nil, err
	}
	if err := writeFile(s.path(alias), sealed, 0o600); err != nil {
		return nil, err
	}
	s.cache[alias] = priv
	log.Debug("created signing key", zap.String("alias", alias), zap.Int("bits", s.bits))
	return priv, nil
}

// writeFile writes through a temp file and renames it over path.
func writeFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
