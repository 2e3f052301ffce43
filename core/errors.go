// Copyright 2025 Poiesic Systems
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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyID indicates the record identifier is empty.
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrNoFields indicates the record has no fields.
	ErrNoFields = errors.New("record must have at least one field")

	// ErrEmptyFieldName indicates a field without a name.
	ErrEmptyFieldName = errors.New("field name cannot be empty")

	// ErrDuplicateField indicates two fields share the same name.
	ErrDuplicateField = errors.New("duplicate field name")
)

// ErrMalformedEncoding indicates a serialized value declares more elements than it contains.
var ErrMalformedEncoding = errors.New("malformed encoding")
