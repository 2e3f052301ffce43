package core

import (
	"errors"
	"testing"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *Record
		wantErr error
	}{
		{
			name:    "valid record",
			record:  NewRecord("1", "name", "Mario Rossi"),
			wantErr: nil,
		},
		{
			name:    "valid record with empty value",
			record:  NewRecord("1", "name", "Mario Rossi", "note", ""),
			wantErr: nil,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidRecord,
		},
		{
			name:    "empty id",
			record:  NewRecord("", "name", "Mario"),
			wantErr: ErrEmptyID,
		},
		{
			name:    "blank id",
			record:  NewRecord("   ", "name", "Mario"),
			wantErr: ErrEmptyID,
		},
		{
			name:    "no fields",
			record:  &Record{Id: "1"},
			wantErr: ErrNoFields,
		},
		{
			name:    "empty field name",
			record:  NewRecord("1", "", "Mario"),
			wantErr: ErrEmptyFieldName,
		},
		{
			name:    "duplicate field",
			record:  NewRecord("1", "name", "Mario", "name", "Luigi"),
			wantErr: ErrDuplicateField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRecord() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateRecord() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("ValidateRecord() error = %v, want wrapped %v", err, ErrInvalidRecord)
			}
		})
	}
}

func TestValidateFieldName(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		wantErr bool
	}{
		{"plain name", "name", false},
		{"name with spaces", "phone number", false},
		{"empty", "", true},
		{"whitespace only", " \t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldName(tt.field)

			if tt.wantErr && err == nil {
				t.Error("ValidateFieldName() error = nil, want error")
			}

			if !tt.wantErr && err != nil {
				t.Errorf("ValidateFieldName() error = %v, want nil", err)
			}

			if err != nil && !errors.Is(err, ErrEmptyFieldName) {
				t.Errorf("ValidateFieldName() error = %v, want %v", err, ErrEmptyFieldName)
			}
		})
	}
}
