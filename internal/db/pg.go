package db

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ParseUUID converts a string id into a pgtype.UUID.
func ParseUUID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("parse uuid %q: %w", id, err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

// ParseOptionalUUID returns an invalid pgtype.UUID for empty input.
func ParseOptionalUUID(id string) (pgtype.UUID, error) {
	if strings.TrimSpace(id) == "" {
		return pgtype.UUID{}, nil
	}
	return ParseUUID(id)
}

// UUIDString renders a pgtype.UUID as its canonical string, or "" when unset.
func UUIDString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

// ToText wraps a string as pgtype.Text, invalid when blank.
func ToText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: strings.TrimSpace(s) != ""}
}

// TextString unwraps a pgtype.Text, "" when unset.
func TextString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}
