package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationID_OrderIndependent(t *testing.T) {
	ab, err := ConversationID("u1", "u2")
	require.NoError(t, err)
	ba, err := ConversationID("u2", "u1")
	require.NoError(t, err)

	assert.Equal(t, "u1_u2", ab)
	assert.Equal(t, ab, ba)
}

func TestConversationID_MissingParticipant(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"empty first", "", "u2"},
		{"empty second", "u1", ""},
		{"both empty", "", ""},
		{"whitespace only", "   ", "u2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConversationID(tt.a, tt.b)
			assert.ErrorIs(t, err, ErrMissingParticipant)
		})
	}
}

func TestConversationID_Stable(t *testing.T) {
	first, err := ConversationID("applicant-42", "advisor-7")
	require.NoError(t, err)
	second, err := ConversationID("applicant-42", "advisor-7")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
