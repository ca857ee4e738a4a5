package billdesk

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"storefront-backend/internal/domains/payment/model"
	"storefront-backend/pkg/logger"
)

// =====================================================
// BILLDESK ENVELOPE CODEC
// =====================================================
//
// Every request/response body is a two-layer JOSE envelope:
//
//	outer: JWS compact, alg=HS256, header carries kid + clientid,
//	       payload is the inner JWE compact string
//	inner: JWE compact, alg=dir, enc=A256GCM, kid=encryption key id,
//	       empty encrypted-key segment, AAD = base64url JWE header
//
// The 256-bit content key is SHA-256 of the shared encryption secret,
// so both sides derive the identical key without a key exchange.

const gcmIVSize = 12

type jweHeader struct {
	Alg string `json:"alg"`
	Enc string `json:"enc"`
	Kid string `json:"kid"`
}

type jwsHeader struct {
	Alg      string `json:"alg"`
	Kid      string `json:"kid"`
	ClientID string `json:"clientid"`
}

var b64 = base64.RawURLEncoding

// deriveContentKey turns the shared encryption secret into the AES-256 key
func deriveContentKey(encSecret string) []byte {
	sum := sha256.Sum256([]byte(encSecret))
	return sum[:]
}

// EncryptAndSign wraps plaintext in the JWE-inside-JWS envelope.
func EncryptAndSign(plaintext []byte, cfg Config) (string, error) {
	jwe, err := encrypt(plaintext, cfg.EncSecret, cfg.EncKeyID)
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}
	return sign(jwe, cfg.SignSecret, cfg.SignKeyID, cfg.ClientID)
}

func encrypt(plaintext []byte, encSecret, encKeyID string) (string, error) {
	headerJSON, err := json.Marshal(jweHeader{Alg: "dir", Enc: "A256GCM", Kid: encKeyID})
	if err != nil {
		return "", err
	}
	headerB64 := b64.EncodeToString(headerJSON)

	block, err := aes.NewCipher(deriveContentKey(encSecret))
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcmIVSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	// AAD is the ASCII of the encoded header, binding it to the ciphertext
	sealed := aead.Seal(nil, iv, plaintext, []byte(headerB64))
	tagStart := len(sealed) - aead.Overhead()
	ciphertext, tag := sealed[:tagStart], sealed[tagStart:]

	// Compact form with an empty encrypted-key segment (alg=dir)
	return strings.Join([]string{
		headerB64,
		"",
		b64.EncodeToString(iv),
		b64.EncodeToString(ciphertext),
		b64.EncodeToString(tag),
	}, "."), nil
}

func sign(payload, signSecret, signKeyID, clientID string) (string, error) {
	headerJSON, err := json.Marshal(jwsHeader{Alg: "HS256", Kid: signKeyID, ClientID: clientID})
	if err != nil {
		return "", err
	}

	signingInput := b64.EncodeToString(headerJSON) + "." + b64.EncodeToString([]byte(payload))
	sig, err := jwt.SigningMethodHS256.Sign(signingInput, []byte(signSecret))
	if err != nil {
		return "", fmt.Errorf("sign envelope: %w", err)
	}
	return signingInput + "." + b64.EncodeToString(sig), nil
}

// VerifyAndDecrypt checks the JWS MAC, then opens the inner JWE. The MAC is
// always checked before any decryption happens; a bad MAC never reaches the
// AEAD open. Responses signed with the sentinel key id "HMAC" (the gateway
// does this on some error payloads) are accepted with a logged fallback,
// since the MAC key does not depend on the advertised kid.
func VerifyAndDecrypt(envelope string, cfg Config) ([]byte, error) {
	jwe, err := verify(envelope, cfg.SignSecret, cfg.SignKeyID)
	if err != nil {
		return nil, err
	}
	return decrypt(jwe, cfg.EncSecret)
}

func verify(envelope, signSecret, signKeyID string) (string, error) {
	parts := strings.Split(strings.TrimSpace(envelope), ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: expected 3 segments, got %d", model.ErrSignatureInvalid, len(parts))
	}

	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: bad signature encoding", model.ErrSignatureInvalid)
	}

	signingInput := parts[0] + "." + parts[1]
	if err := jwt.SigningMethodHS256.Verify(signingInput, sig, []byte(signSecret)); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrSignatureInvalid, err)
	}

	headerJSON, err := b64.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: bad header encoding", model.ErrSignatureInvalid)
	}
	var header jwsHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return "", fmt.Errorf("%w: bad header json", model.ErrSignatureInvalid)
	}
	switch header.Kid {
	case signKeyID:
	case model.SentinelSignKeyID:
		logger.Info("accepted sentinel signing key id on verified envelope", map[string]interface{}{
			"kid": header.Kid,
		})
	default:
		return "", fmt.Errorf("%w: unexpected signing key id %q", model.ErrSignatureInvalid, header.Kid)
	}

	payload, err := b64.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("%w: bad payload encoding", model.ErrSignatureInvalid)
	}
	return string(payload), nil
}

func decrypt(jwe, encSecret string) ([]byte, error) {
	parts := strings.Split(strings.TrimSpace(jwe), ".")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: expected 5 segments, got %d", model.ErrDecryptionFailed, len(parts))
	}
	if parts[1] != "" {
		return nil, fmt.Errorf("%w: non-empty encrypted key with alg=dir", model.ErrDecryptionFailed)
	}

	iv, err := b64.DecodeString(parts[2])
	if err != nil || len(iv) != gcmIVSize {
		return nil, fmt.Errorf("%w: bad iv", model.ErrDecryptionFailed)
	}
	ciphertext, err := b64.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", model.ErrDecryptionFailed)
	}
	tag, err := b64.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: bad tag encoding", model.ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(deriveContentKey(encSecret))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrDecryptionFailed, err)
	}

	sealed := append(ciphertext, tag...)
	plaintext, err := aead.Open(nil, iv, sealed, []byte(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: aead open: %v", model.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
