// Package token signs question record ids into reply tokens that fit in the
// local part of an email address.
package token

import (
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"group_question_service/internal/domain/reply"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MinSecretLength is the shortest accepted signing secret.
	MinSecretLength = 32
	// macLength keeps 160 bits of the HS256 MAC so tokens stay under the
	// 64 character limit of an address local part.
	macLength = 20
)

var (
	ErrSecretTooShort = errors.New("token secret is too short")
	ErrInvalidID      = errors.New("record id must be positive")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Signer produces tokens of the form <record id>-<signature>. The signature is
// a truncated HS256 MAC over the record id, base32 encoded in lower case so that the
// token survives mail systems that fold the case of addresses.
type Signer struct {
	secret []byte
	method *jwt.SigningMethodHMAC
}

func NewSigner(secret string) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrSecretTooShort, MinSecretLength, len(secret))
	}
	return &Signer{secret: []byte(secret), method: jwt.SigningMethodHS256}, nil
}

func signingString(recordID int64) string {
	return "question_record:" + strconv.FormatInt(recordID, 10)
}

func (s *Signer) mac(recordID int64) ([]byte, error) {
	sig, err := s.method.Sign(signingString(recordID), s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing record %d: %w", recordID, err)
	}
	return sig[:macLength], nil
}

func (s *Signer) Sign(recordID int64) (string, error) {
	if recordID <= 0 {
		return "", ErrInvalidID
	}
	sig, err := s.mac(recordID)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(recordID, 10) + "-" + strings.ToLower(encoding.EncodeToString(sig)), nil
}

// Verify checks the token and returns the record id it carries.
func (s *Signer) Verify(token string) (int64, error) {
	idPart, sigPart, ok := strings.Cut(strings.TrimSpace(token), "-")
	if !ok || idPart == "" || sigPart == "" {
		return 0, fmt.Errorf("%w: malformed token", reply.ErrInvalidSignature)
	}
	recordID, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || recordID <= 0 {
		return 0, fmt.Errorf("%w: malformed record id", reply.ErrInvalidSignature)
	}
	sig, err := encoding.DecodeString(strings.ToUpper(sigPart))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed signature: %v", reply.ErrInvalidSignature, err)
	}
	expected, err := s.mac(recordID)
	if err != nil {
		return 0, err
	}
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return 0, fmt.Errorf("%w: record %d", reply.ErrInvalidSignature, recordID)
	}
	return recordID, nil
}
