package protect

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workpal/internal/config"
	"workpal/internal/repository/db"
)

// newGateway serves a reversible toy cipher: protect XORs every byte, and
// unprotect undoes it. Payloads must round-trip byte for byte.
func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	xor := func(payload []byte) []byte {
		out := make([]byte, len(payload))
		for i, b := range payload {
			out[i] = b ^ 0x5a
		}
		return out
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/protect", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(xor(body))
	})
	mux.HandleFunc("/unprotect", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(xor(body))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestProtector(baseURL string) *Protector {
	return New(config.ProtectConfig{
		BaseURL: baseURL,
		Auth:    "Bearer test-token",
		Timeout: 5 * time.Second,
	})
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	gateway := newGateway(t)
	protector := newTestProtector(gateway.URL)
	ctx := context.Background()

	// Commas and newlines must survive the gateway hop unchanged
	plaintext := "line one, with a comma\nline two\r\nand trailing spaces  "

	ciphertext := protector.Encrypt(ctx, plaintext)
	require.NotEqual(t, plaintext, ciphertext)

	_, ok := Classify(ciphertext)
	assert.True(t, ok, "encrypted value should classify as ciphertext")

	assert.Equal(t, plaintext, protector.Decrypt(ctx, ciphertext))
}

func TestEncrypt_GatewayDownStoresPlaintext(t *testing.T) {
	protector := newTestProtector("http://127.0.0.1:1")
	plaintext := "salary discussion notes"

	assert.Equal(t, plaintext, protector.Encrypt(context.Background(), plaintext))
}

func TestEncrypt_GatewayErrorStoresPlaintext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	protector := newTestProtector(server.URL)
	assert.Equal(t, "hello", protector.Encrypt(context.Background(), "hello"))
}

func TestDecrypt_PlaintextPassesThrough(t *testing.T) {
	gateway := newGateway(t)
	protector := newTestProtector(gateway.URL)

	// Rows written during an outage are plaintext and must stay readable
	legacy := "plain question about benefits?"
	assert.Equal(t, legacy, protector.Decrypt(context.Background(), legacy))
}

func TestDecrypt_GatewayDownReturnsValueAsIs(t *testing.T) {
	gateway := newGateway(t)
	protector := newTestProtector(gateway.URL)
	ciphertext := protector.Encrypt(context.Background(), "secret")

	gateway.Close()
	assert.Equal(t, ciphertext, protector.Decrypt(context.Background(), ciphertext))
}

func TestNilProtector_PassesThrough(t *testing.T) {
	var protector *Protector
	ctx := context.Background()

	assert.Equal(t, "as-is", protector.Encrypt(ctx, "as-is"))
	assert.Equal(t, "as-is", protector.Decrypt(ctx, "as-is"))

	metadata := db.Metadata{MetaQuestionContext: "context"}
	assert.Equal(t, metadata, protector.EncryptMetadata(ctx, metadata))
}

func TestNew_DisabledWithoutBaseURL(t *testing.T) {
	assert.Nil(t, New(config.ProtectConfig{}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "empty", value: "", want: false},
		{name: "plain sentence", value: "what is my PTO balance?", want: false},
		{name: "valid base64", value: "aGVsbG8gd29ybGQ=", want: true},
		{name: "invalid padding", value: "aGVsbG8===", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := Classify(tt.value)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncryptMetadata_OnlyQuestionContext(t *testing.T) {
	gateway := newGateway(t)
	protector := newTestProtector(gateway.URL)
	ctx := context.Background()

	original := db.Metadata{
		MetaQuestionContext: "employee asked about parental leave",
		"doc_id":            "handbook",
	}
	encrypted := protector.EncryptMetadata(ctx, original)

	assert.NotEqual(t, original[MetaQuestionContext], encrypted[MetaQuestionContext])
	assert.Equal(t, true, encrypted[MetaQuestionContextEnc])
	assert.Equal(t, "handbook", encrypted["doc_id"])
	// The input map is never mutated
	assert.Equal(t, "employee asked about parental leave", original[MetaQuestionContext])
	assert.NotContains(t, original, MetaQuestionContextEnc)

	decrypted := protector.DecryptMetadata(ctx, encrypted)
	assert.Equal(t, original[MetaQuestionContext], decrypted[MetaQuestionContext])
}

func TestEncryptMetadata_NoQuestionContext(t *testing.T) {
	gateway := newGateway(t)
	protector := newTestProtector(gateway.URL)

	metadata := db.Metadata{"doc_id": "handbook"}
	assert.Equal(t, metadata, protector.EncryptMetadata(context.Background(), metadata))
}

func TestCall_SendsAuthorizationHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	t.Cleanup(server.Close)

	protector := newTestProtector(server.URL)
	protector.Encrypt(context.Background(), "ping")

	assert.Equal(t, "Bearer test-token", gotAuth)
}
