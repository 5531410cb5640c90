package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// FamilyID is a 128-bit random identifier naming one refresh-token lineage.
type FamilyID [16]byte

func NewFamilyID() (FamilyID, error) {
	var fid FamilyID
	_, err := rand.Read(fid[:])
	return fid, err
}

func (f FamilyID) Bytes() []byte {
	return f[:]
}

func (f FamilyID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(f[:])
}

func ParseFamilyID(familyID string) (FamilyID, error) {
	var fid FamilyID

	raw, err := base64.RawURLEncoding.DecodeString(familyID)
	if err != nil {
		return fid, err
	}
	if len(raw) != len(fid) {
		return fid, errors.New("invalid family id size")
	}

	copy(fid[:], raw)
	return fid, nil
}

// NewJTI returns a fresh 128-bit token identifier in base64url form.
// JTIs key both revocation records and used-refresh markers, so two
// tokens must never share one.
func NewJTI() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}
