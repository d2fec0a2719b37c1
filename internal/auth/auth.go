/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package auth guards the flybox REPL's own login prompt - a local
operator credential, separate from the chap-sha1 mechanism spec.md §6
defines for the wire protocol between a client and a running node (that
one lives on schema.User.Scramble, verified by txn-level replace
triggers on _user).

A REPL operator account has no notion of scramble/salt exchange: it is
one bcrypt hash sitting in a small JSON file under the node's data
directory, checked once at process start before the REPL hands control
to the admin console. Losing this file just means re-running the
first-time setup prompt; it carries no wire-protocol compatibility
burden the way _user's AuthMechanism does.
*/
package auth

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
)

// AdminUsername is the reserved username for the REPL administrator.
const AdminUsername = "admin"

// PasswordLength is the default length for generated passwords.
const PasswordLength = 16

// passwordCharset excludes ambiguous characters (0, O, l, 1, I) for
// readability when a generated password is read off a terminal.
const passwordCharset = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789!@#$%^&*"

// DefaultBcryptCost is the cost factor used for the REPL credential hash.
const DefaultBcryptCost = 10

// GenerateSecurePassword generates a cryptographically secure random
// password made up of passwordCharset characters.
func GenerateSecurePassword(length int) (string, error) {
	if length <= 0 {
		length = PasswordLength
	}

	password := make([]byte, length)
	charsetLen := big.NewInt(int64(len(passwordCharset)))

	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", errors.New("failed to generate secure random number: " + err.Error())
		}
		password[i] = passwordCharset[idx.Int64()]
	}

	return string(password), nil
}

// credential is the on-disk shape of the REPL operator account.
type credential struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// Store manages the single REPL operator credential, persisted as a
// small JSON file rather than a space - this login gates the REPL
// itself, before any space or transaction exists to hold it.
type Store struct {
	path string
}

// NewStore returns a Store backed by a JSON file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the conventional credential file location under a
// node's data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "flybox-auth.json")
}

func (s *Store) load() (*credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var c credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) save(c *credential) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Exists reports whether a credential file has already been written.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// SetPassword hashes password with bcrypt and (over)writes the stored
// credential for username.
func (s *Store) SetPassword(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return errors.New("failed to hash password: " + err.Error())
	}
	return s.save(&credential{Username: username, PasswordHash: string(hash)})
}

// InitializeWithGeneratedPassword creates the admin credential with a
// freshly generated password and returns it so the caller can display it
// once; it is never recoverable afterward.
func (s *Store) InitializeWithGeneratedPassword() (string, error) {
	password, err := GenerateSecurePassword(PasswordLength)
	if err != nil {
		return "", err
	}
	if err := s.SetPassword(AdminUsername, password); err != nil {
		return "", err
	}
	return password, nil
}

// Authenticate reports whether username/password match the stored
// credential. A dummy bcrypt comparison runs on a missing file or a
// username mismatch so the two failure modes take the same time.
func (s *Store) Authenticate(username, password string) bool {
	c, err := s.load()
	if err != nil || c.Username != username {
		bcrypt.CompareHashAndPassword([]byte("$2a$10$dummyhashdummyhashdummyhau"), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}
