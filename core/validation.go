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

import (
	"fmt"
	"strings"
)

// ValidateRecord checks that a record can be ingested.
// Field values may be empty; names must be present and unique.
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if strings.TrimSpace(string(record.Id)) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyID)
	}

	if len(record.Fields) == 0 {
		return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, record.Id, ErrNoFields)
	}

	seen := make(map[string]struct{}, len(record.Fields))
	for _, f := range record.Fields {
		if err := ValidateFieldName(f.Name); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidRecord, record.Id, err)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: %s: %w: %q", ErrInvalidRecord, record.Id, ErrDuplicateField, f.Name)
		}
		seen[f.Name] = struct{}{}
	}

	return nil
}

// ValidateFieldName rejects blank field names.
func ValidateFieldName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyFieldName
	}
	return nil
}
