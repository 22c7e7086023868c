package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/aretw0/proofline/pkg/adapters/memory"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/persistence/middleware"
	"github.com/aretw0/proofline/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func sealed(t *testing.T, next ports.StateStore, active []byte, fallback ...[]byte) ports.StateStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
	require.NoError(t, err)
	return middleware.Chain(next, mw)
}

func analyzedState(id, text string) *domain.State {
	st := domain.NewState(id)
	st.InputText = text
	st.Result = &domain.AnalysisResult{
		OriginalText:      text,
		CorrectedFullText: strings.Replace(text, "teh", "the", 1),
		Issues:            []domain.Issue{{ID: 0, Original: "teh", Replacement: "the", Category: domain.CategorySpelling}},
	}
	return st
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, sealed(t, memory.NewStore(), generateKey(t)))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := sealed(t, underlying, generateKey(t))

	require.NoError(t, store.Save(ctx, "s1", analyzedState("s1", "My confidential teh draft")))

	raw, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, raw.InputText, "confidential")
	assert.Nil(t, raw.Result)
	assert.Equal(t, "s1", raw.SessionID)

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "My confidential teh draft", loaded.InputText)
	require.NotNil(t, loaded.Result)
	assert.Equal(t, "the", loaded.Result.Issues[0].Replacement)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldStore := sealed(t, underlying, oldKey)
	require.NoError(t, oldStore.Save(ctx, "s1", analyzedState("s1", "written with the old key")))

	newStore := sealed(t, underlying, newKey, oldKey)
	loaded, err := newStore.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "written with the old key", loaded.InputText)

	loaded.InputText = "written with the new key"
	require.NoError(t, newStore.Save(ctx, "s1", loaded))

	_, err = oldStore.Load(ctx, "s1")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainSnapshots(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, "plain", analyzedState("plain", "not sealed")))

	_, err := sealed(t, underlying, generateKey(t)).Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)

	_, err = sealed(t, underlying, generateKey(t)).Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	assert.Error(t, err)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    generateKey(t),
		FallbackKeys: [][]byte{[]byte("short")},
	})
	assert.Error(t, err)
}
