package token

import (
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// RecordVersion is the record format version written by EncodeRecord.
const RecordVersion = "1.0"

// Record is the provider-issued identity of an authenticated principal.
type Record = azidentity.AuthenticationRecord

// NewRecord builds a versioned record.
func NewRecord(authority, clientID, homeAccountID, tenantID, username string) Record {
	return Record{
		Authority:     authority,
		ClientID:      clientID,
		HomeAccountID: homeAccountID,
		TenantID:      tenantID,
		Username:      username,
		Version:       RecordVersion,
	}
}

// EncodeRecord serializes a record in the format produced by account
// discovery.
func EncodeRecord(r Record) ([]byte, error) {
	if r.Version == "" {
		r.Version = RecordVersion
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode authentication record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses a serialized record. Unsupported versions are rejected.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode authentication record: %w", err)
	}
	return r, nil
}
