package credstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecordVersion is the only schema version accepted on read.
const RecordVersion = "1.0"

// recordFields lists keys that must all be present for a record to be trusted.
var recordFields = []string{"version", "encrypted_token", "created_at", "last_used", "user_name"}

// StoredCredential is the persisted record.
type StoredCredential struct {
	Version        string    `json:"version"`
	EncryptedToken string    `json:"encrypted_token"`
	CreatedAt      time.Time `json:"created_at"`
	LastUsed       time.Time `json:"last_used"`
	UserName       string    `json:"user_name"`
}

func encodeRecord(rec *StoredCredential) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return append(data, '\n'), nil
}

// decodeRecord parses data and enforces the schema: every field present,
// version exact, ciphertext non-empty.
func decodeRecord(data []byte) (*StoredCredential, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	for _, name := range recordFields {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("record missing field %q", name)
		}
	}

	var rec StoredCredential
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	if rec.Version != RecordVersion {
		return nil, fmt.Errorf("record version %q, expected %q", rec.Version, RecordVersion)
	}
	if rec.EncryptedToken == "" {
		return nil, fmt.Errorf("record has empty encrypted_token")
	}
	return &rec, nil
}
