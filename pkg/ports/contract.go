package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/proofline/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(sessionID)
		state.InputText = "He go to school."
		state.Result = &domain.AnalysisResult{
			OriginalText:      "He go to school.",
			CorrectedFullText: "He goes to school.",
			Issues: []domain.Issue{
				{ID: 0, Original: "go", Replacement: "goes", Category: domain.CategoryGrammar, Context: "He go to"},
			},
			Statistics: domain.Statistics{WordCount: 4, CharacterCount: 16, ReadabilityScore: "Easy", Tone: "Neutral"},
		}

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.InputText, loaded.InputText)
		require.NotNil(t, loaded.Result)
		assert.Equal(t, state.Result.Issues, loaded.Result.Issues)
		assert.Equal(t, state.Result.Statistics, loaded.Result.Statistics)
		assert.Equal(t, domain.StatusSuccess, loaded.Status())
	})

	t.Run("Load is isolated from later mutation", func(t *testing.T) {
		state := domain.NewState(sessionID)
		state.InputText = "original"
		require.NoError(t, store.Save(ctx, sessionID, state))

		state.InputText = "mutated after save"

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "original", loaded.InputText)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1))
		_ = store.Save(ctx, id2, domain.NewState(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
