package chat_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "changanet/internal/pkg/chat/application/domain"
)

func TestEncodeConversationID_OrderIndependent(t *testing.T) {
	for i := 0; i < 50; i++ {
		a, b := uuid.New(), uuid.New()

		ab, err := chat.EncodeConversationID(a, b)
		require.NoError(t, err)
		ba, err := chat.EncodeConversationID(b, a)
		require.NoError(t, err)
		assert.Equal(t, ab, ba)

		parsed, err := chat.ParseConversationID(ab.String())
		require.NoError(t, err)
		first, second := parsed.Participants()
		assert.ElementsMatch(t, []string{a.String(), b.String()}, []string{first, second})
	}
}

func TestEncodeConversationID_Injective(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	ab, err := chat.EncodeConversationID(a, b)
	require.NoError(t, err)
	ac, err := chat.EncodeConversationID(a, c)
	require.NoError(t, err)
	assert.NotEqual(t, ab, ac)
}

func TestEncodeConversationID_RejectsInvalidPairs(t *testing.T) {
	a := uuid.New()

	_, err := chat.EncodeConversationID(a, a)
	assert.ErrorIs(t, err, chat.ErrInvalidParticipants)

	_, err = chat.EncodeConversationID(a, uuid.Nil)
	assert.ErrorIs(t, err, chat.ErrInvalidParticipants)
}

func TestParseConversationID_Malformed(t *testing.T) {
	a := uuid.MustParse("0c2a9b8e-4f4d-4a53-9d5e-1f7f3a0c2b11")
	b := uuid.MustParse("9f1e6d2c-7a3b-4c8d-8e9f-0a1b2c3d4e5f")

	cases := map[string]string{
		"empty":           "",
		"bare uuid":       a.String(),
		"hyphen joined":   a.String() + "-" + b.String(),
		"reversed order":  b.String() + "_" + a.String(),
		"same twice":      a.String() + "_" + a.String(),
		"uppercase":       strings.ToUpper(a.String()) + "_" + b.String(),
		"three parts":     a.String() + "_" + b.String() + "_" + a.String(),
		"unhyphenated":    strings.ReplaceAll(a.String(), "-", "") + "_" + b.String(),
		"trailing sep":    a.String() + "_",
		"nil participant": uuid.Nil.String() + "_" + a.String(),
		"garbage":         "u1_u2",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := chat.ParseConversationID(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, chat.ErrMalformedIdentifier)
			assert.Equal(t, chat.KindMalformedIdentifier, chat.KindOf(err))
		})
	}
}

func TestConversationID_Other(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	id, err := chat.EncodeConversationID(a, b)
	require.NoError(t, err)

	other, ok := id.Other(a.String())
	require.True(t, ok)
	assert.Equal(t, b.String(), other)

	other, ok = id.Other(strings.ToUpper(b.String()))
	require.True(t, ok)
	assert.Equal(t, a.String(), other)

	assert.False(t, id.Has(uuid.NewString()))
	assert.False(t, id.Has("not-a-uuid"))
}
