package credential

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire record for persisted credentials. ExpiresAt travels as epoch millis so
// the blob stays readable by non-Go consumers of the same key.
type record struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
	SubjectID    string `json:"subjectId"`
}

func encodeRecord(cred Credential) ([]byte, error) {
	rec := record{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt.UnixMilli(),
		SubjectID:    cred.SubjectID,
	}
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (Credential, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if rec.AccessToken == "" || rec.ExpiresAt == 0 {
		return Credential{}, fmt.Errorf("%w: missing required fields", ErrCorruptRecord)
	}

	return Credential{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    time.UnixMilli(rec.ExpiresAt),
		SubjectID:    rec.SubjectID,
	}, nil
}
