// Package secrets supplies the local test account credential used by the
// auth suite when no remote credentials are injected.
package secrets

import (
	"encoding/json"
	"fmt"
	"os"
)

// Credential is a username/password pair for the test account
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Empty reports whether the credential carries no usable secret
func (c Credential) Empty() bool {
	return c.Password == ""
}

// Store hands out the locally provisioned test credential
type Store interface {
	TestCredential() (Credential, error)
}

// FileStore reads the credential from a JSON file provisioned by the CMS
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) TestCredential() (Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Credential{}, fmt.Errorf("reading credential file: %w", err)
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}, fmt.Errorf("parsing credential file: %w", err)
	}
	return c, nil
}

// Static is a fixed in-memory credential, used in tests and local setups
type Static struct {
	Credential Credential
}

var _ Store = (*Static)(nil)

func (s *Static) TestCredential() (Credential, error) {
	return s.Credential, nil
}
