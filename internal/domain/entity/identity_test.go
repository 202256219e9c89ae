package entity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvatarURL(t *testing.T) {
	tests := []struct {
		name          string
		userID        string
		avatarHash    string
		discriminator string
		want          string
	}{
		{
			name:       "custom avatar",
			userID:     "42",
			avatarHash: "a1b2c3",
			want:       "https://cdn.discordapp.com/avatars/42/a1b2c3.png",
		},
		{
			name:          "legacy discriminator",
			userID:        "42",
			discriminator: "1234",
			want:          "https://cdn.discordapp.com/embed/avatars/4.png",
		},
		{
			name:          "migrated username",
			userID:        "42",
			discriminator: "0",
			want:          "https://cdn.discordapp.com/embed/avatars/0.png",
		},
		{
			name:   "no discriminator",
			userID: "42",
			want:   "https://cdn.discordapp.com/embed/avatars/1.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AvatarURL(tt.userID, tt.avatarHash, tt.discriminator))
		})
	}
}

func TestDefaultAvatarIndex_InRangeAndDeterministic(t *testing.T) {
	for _, d := range []string{"", "0", "0001", "9999", "abc", "18446744073709551615"} {
		first := DefaultAvatarIndex(d)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, defaultAvatarCount)
		assert.Equal(t, first, DefaultAvatarIndex(d))
	}
}

func TestProviderCredential_StringRedactsToken(t *testing.T) {
	cred := ProviderCredential{AccessToken: "tok1", TokenType: "Bearer"}

	assert.NotContains(t, fmt.Sprintf("%v", cred), "tok1")
}
