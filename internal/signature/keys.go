package signature

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// rsaAlgorithmIdentifier is the DER encoding of
// SEQUENCE { OID 1.2.840.113549.1.1.1, NULL }.
var rsaAlgorithmIdentifier = []byte{
	0x30, 0x0d,
	0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01,
	0x05, 0x00,
}

// pkcs8Version is INTEGER 0.
var pkcs8Version = []byte{0x02, 0x01, 0x00}

// ErrNoPEMBlock is returned when the input carries no PEM armour.
var ErrNoPEMBlock = errors.New("no PEM block found")

// WrapPKCS1 re-encapsulates a PKCS#1 RSAPrivateKey DER in a minimal PKCS#8
// PrivateKeyInfo: version 0, the rsaEncryption algorithm with NULL
// parameters, and the PKCS#1 bytes as an OCTET STRING.
func WrapPKCS1(pkcs1DER []byte) []byte {
	octet := append([]byte{0x04}, derLength(len(pkcs1DER))...)

	bodyLen := len(pkcs8Version) + len(rsaAlgorithmIdentifier) + len(octet) + len(pkcs1DER)

	out := make([]byte, 0, bodyLen+6)
	out = append(out, 0x30)
	out = append(out, derLength(bodyLen)...)
	out = append(out, pkcs8Version...)
	out = append(out, rsaAlgorithmIdentifier...)
	out = append(out, octet...)
	out = append(out, pkcs1DER...)
	return out
}

// derLength encodes n in DER definite form: short form below 128, otherwise
// 0x80|k followed by k big-endian bytes.
func derLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var digits []byte
	for v := n; v > 0; v >>= 8 {
		digits = append([]byte{byte(v)}, digits...)
	}
	return append([]byte{0x80 | byte(len(digits))}, digits...)
}

// ParsePrivateKeyPEM loads a merchant private key. Legacy "RSA PRIVATE KEY"
// (PKCS#1) blocks are rewrapped into PKCS#8 before import; "PRIVATE KEY"
// blocks are imported as they are.
func ParsePrivateKeyPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	der := block.Bytes
	switch block.Type {
	case "RSA PRIVATE KEY":
		der = WrapPKCS1(block.Bytes)
	case "PRIVATE KEY":
	default:
		return nil, fmt.Errorf("unsupported private key PEM type %q", block.Type)
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to import PKCS#8 private key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want RSA", key)
	}
	return rsaKey, nil
}

// ParsePublicKeyPEM loads the provider verification key from either a
// certificate or a bare SubjectPublicKeyInfo block.
func ParsePublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	var pub any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse provider certificate: %w", err)
		}
		pub = cert.PublicKey
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse provider public key: %w", err)
		}
		pub = key
	default:
		return nil, fmt.Errorf("unsupported public key PEM type %q", block.Type)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want RSA", pub)
	}
	return rsaKey, nil
}
