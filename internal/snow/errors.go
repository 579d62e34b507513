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

package snow

import (
	"errors"

	"github.com/snowbridge-io/snowbridge/internal/snow/transport"
)

// Error kinds carried in the response envelope's error_type field.
// Consumers route on these to distinguish "try again shortly" from
// "don't retry"; the human-readable message is advisory only.
const (
	ErrTypeValidation = string(transport.ErrorTypeInvalidReq)
	ErrTypeAuth       = string(transport.ErrorTypeAuth)
	ErrTypeRateLimit  = string(transport.ErrorTypeRateLimit)
	ErrTypeTimeout    = string(transport.ErrorTypeTimeout)
	ErrTypeClient     = string(transport.ErrorTypeClient)
	ErrTypeServer     = string(transport.ErrorTypeServer)
	ErrTypeConnection = string(transport.ErrorTypeConnection)
	ErrTypeCancelled  = string(transport.ErrorTypeCancelled)
	ErrTypeUnknown    = "unknown_error"
)

// ValidationError indicates a malformed field name, value, identifier, or
// request shape. Always raised locally, before any network call.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// classifyError maps an error to an envelope error_type.
func classifyError(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return ErrTypeValidation
	}

	var terr *transport.Error
	if errors.As(err, &terr) {
		return string(terr.Type)
	}

	return ErrTypeUnknown
}

// IsAuthError reports whether err is an authentication failure. The tool
// boundary uses this to substitute a credential-safe message.
func IsAuthError(err error) bool {
	var terr *transport.Error
	return errors.As(err, &terr) && terr.Type == transport.ErrorTypeAuth
}
