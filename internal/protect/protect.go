// Package protect wraps the field-encryption gateway. Writes must never be
// blocked by the gateway: every failure degrades to plaintext with a warning,
// and values written during an outage stay readable afterwards.
package protect

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"workpal/internal/config"
	"workpal/internal/logger"
	"workpal/internal/repository/db"
)

// Metadata keys handled by the adapter. QuestionContext is the one metadata
// field carrying sensitive text; the boolean flag disambiguates short strings
// the base64 heuristic cannot.
const (
	MetaQuestionContext    = "question_context"
	MetaQuestionContextEnc = "question_context_enc"
)

// Protector calls the gateway's protect/unprotect endpoints. A nil Protector
// is a valid pass-through: every method returns its input unchanged.
type Protector struct {
	baseURL string
	auth    string
	client  *http.Client
}

// New builds a Protector from config. Returns nil when no gateway is
// configured, which disables encryption entirely.
func New(cfg config.ProtectConfig) *Protector {
	if cfg.BaseURL == "" {
		return nil
	}
	return &Protector{
		baseURL: cfg.BaseURL,
		auth:    cfg.Auth,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// call POSTs an opaque payload to a gateway endpoint. Payload bytes round-trip
// exactly, including commas and newlines.
func (p *Protector) call(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error building gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if p.auth != "" {
		req.Header.Set("Authorization", p.auth)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}
	return body, nil
}

// Encrypt protects plaintext and returns it base64-encoded. Any failure
// falls back to returning the plaintext unchanged; the write proceeds in
// degraded mode. Never call this twice on the same value.
func (p *Protector) Encrypt(ctx context.Context, plaintext string) string {
	if p == nil || plaintext == "" {
		return plaintext
	}

	raw, err := p.call(ctx, "/protect", []byte(plaintext))
	if err != nil {
		logger.Log.WithError(err).Warn("Encryption unavailable, storing plaintext")
		return plaintext
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// Classify decides whether a stored value is an encoded ciphertext or
// plaintext. Rows written before the gateway existed, or during an outage,
// are plaintext and must remain readable.
func Classify(value string) ([]byte, bool) {
	if value == "" {
		return nil, false
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(value)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Decrypt restores plaintext from a stored value. Values that do not decode
// as ciphertext, and any gateway failure, return the input unchanged.
func (p *Protector) Decrypt(ctx context.Context, value string) string {
	if p == nil || value == "" {
		return value
	}

	raw, ok := Classify(value)
	if !ok {
		return value
	}

	plaintext, err := p.call(ctx, "/unprotect", raw)
	if err != nil {
		logger.Log.WithError(err).Warn("Decryption failed, returning value as-is")
		return value
	}
	return string(plaintext)
}

// EncryptMetadata clones metadata and protects only the question-context
// field, marking it with the enc flag. Everything else passes through.
func (p *Protector) EncryptMetadata(ctx context.Context, metadata db.Metadata) db.Metadata {
	if p == nil || metadata == nil {
		return metadata
	}
	qc, ok := metadata[MetaQuestionContext].(string)
	if !ok || qc == "" {
		return metadata
	}

	clone := make(db.Metadata, len(metadata)+1)
	for k, v := range metadata {
		clone[k] = v
	}
	clone[MetaQuestionContext] = p.Encrypt(ctx, qc)
	clone[MetaQuestionContextEnc] = true

	logger.Log.WithFields(logrus.Fields{"field": MetaQuestionContext}).Debug("Encrypted metadata field")
	return clone
}

// DecryptMetadata clones metadata and restores the question-context field
// when it is flagged or looks encrypted
func (p *Protector) DecryptMetadata(ctx context.Context, metadata db.Metadata) db.Metadata {
	if p == nil || metadata == nil {
		return metadata
	}
	qc, ok := metadata[MetaQuestionContext].(string)
	if !ok || qc == "" {
		return metadata
	}
	flagged, _ := metadata[MetaQuestionContextEnc].(bool)
	if _, looksEncrypted := Classify(qc); !flagged && !looksEncrypted {
		return metadata
	}

	clone := make(db.Metadata, len(metadata))
	for k, v := range metadata {
		clone[k] = v
	}
	clone[MetaQuestionContext] = p.Decrypt(ctx, qc)
	return clone
}
