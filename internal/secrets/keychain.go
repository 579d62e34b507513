// Copyright 2026 Snowbridge Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeychainBackend resolves secrets from the system keychain.
//
// Supported platforms:
//   - macOS: Keychain Access
//   - Linux: Secret Service API (GNOME Keyring, KWallet)
//   - Windows: Credential Manager
type KeychainBackend struct {
	// service is the keychain service name used for all entries
	service string

	// available indicates if the keychain is accessible
	available bool
}

// NewKeychainBackend creates a keychain backend. The service parameter
// specifies the keychain service name (typically "snowbridge").
func NewKeychainBackend(service string) *KeychainBackend {
	b := &KeychainBackend{
		service:   service,
		available: true,
	}

	// Probe keychain availability up front so the resolver can skip it.
	_, err := keyring.Get(service, "__snowbridge_availability_probe__")
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		b.available = false
	}

	return b
}

// Name returns "keychain".
func (k *KeychainBackend) Name() string { return "keychain" }

// Get retrieves a secret value from the system keychain.
func (k *KeychainBackend) Get(ctx context.Context, key string) (string, error) {
	if !k.available {
		return "", fmt.Errorf("%w: system keychain locked or inaccessible", ErrBackendUnavailable)
	}

	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("keychain access error for %q: %w", key, err)
	}

	return value, nil
}

// Set stores a secret in the keychain. Used by the secrets CLI commands,
// not by the resolution chain.
func (k *KeychainBackend) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("failed to store %q in keychain: %w", key, err)
	}
	return nil
}

// Delete removes a secret from the keychain.
func (k *KeychainBackend) Delete(key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrSecretNotFound
		}
		return fmt.Errorf("failed to delete %q from keychain: %w", key, err)
	}
	return nil
}

// Available reports whether the keychain service responded to the probe.
func (k *KeychainBackend) Available() bool { return k.available }

// Priority returns 50, between explicit configuration and environment.
func (k *KeychainBackend) Priority() int { return 50 }
