// Package signature implements the RSA-SHA256 request signing used by the
// payment provider: values of all fields, ordered by field name, are
// concatenated without a separator and signed with RSASSA-PKCS1-v1.5.
package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FieldName is the parameter that carries the signature itself.
const FieldName = "Signature"

// ErrEmptyParams is returned when there is nothing to sign.
var ErrEmptyParams = errors.New("cannot sign empty parameter set")

// Canonicalize builds the signed payload: the values of params ordered by
// ascending field name, concatenated. The Signature field and any extra
// excluded names are skipped.
func Canonicalize(params map[string]string, exclude ...string) string {
	skip := map[string]struct{}{FieldName: {}}
	for _, name := range exclude {
		skip[name] = struct{}{}
	}

	names := make([]string, 0, len(params))
	for name := range params {
		if _, ok := skip[name]; ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(params[name])
	}
	return b.String()
}

// Signer produces request signatures with the merchant private key.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner creates a signer for key.
func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// NewSignerFromPEM imports a PKCS#1 or PKCS#8 PEM private key.
func NewSignerFromPEM(pemBytes []byte) (*Signer, error) {
	key, err := ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}

// Sign returns the base64 signature over the canonical form of params.
func (s *Signer) Sign(params map[string]string) (string, error) {
	if len(params) == 0 {
		return "", ErrEmptyParams
	}
	if s == nil || s.key == nil {
		return "", errors.New("signer has no private key")
	}

	digest := sha256.Sum256([]byte(Canonicalize(params)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign parameters: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verifier checks provider signatures with the provider's public key.
type Verifier struct {
	key *rsa.PublicKey
}

// NewVerifier creates a verifier for key.
func NewVerifier(key *rsa.PublicKey) *Verifier {
	return &Verifier{key: key}
}

// NewVerifierFromPEM imports a provider certificate or public key PEM.
func NewVerifierFromPEM(pemBytes []byte) (*Verifier, error) {
	key, err := ParsePublicKeyPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return NewVerifier(key), nil
}

// Verify reports whether signature is a valid base64 RSA-SHA256 signature
// over the canonical form of params. Malformed input yields false.
func (v *Verifier) Verify(params map[string]string, signature string) bool {
	if v == nil || v.key == nil || signature == "" {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	digest := sha256.Sum256([]byte(Canonicalize(params)))
	return rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], sig) == nil
}
