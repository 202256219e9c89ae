// Package entity contains the core business objects of the project.
package entity

import (
	"fmt"
	"hash/fnv"
	"strconv"
)

const (
	avatarURLTemplate        = "https://cdn.discordapp.com/avatars/%s/%s.png"
	defaultAvatarURLTemplate = "https://cdn.discordapp.com/embed/avatars/%d.png"

	// defaultAvatarCount is the number of built-in Discord avatars.
	defaultAvatarCount = 5
)

// ProviderCredential is the access token Discord returns for an
// authorization code. It is used once to fetch the profile and dropped.
type ProviderCredential struct {
	AccessToken string
	TokenType   string
}

// String keeps the access token out of logs and formatted errors.
func (c ProviderCredential) String() string {
	return "ProviderCredential{AccessToken: [redacted]}"
}

// UserIdentity is the Discord user as seen by this service. It is built
// fresh on every callback and only lives inside the signed token and the
// frontend redirect.
type UserIdentity struct {
	ProviderID string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	AvatarURL  string `json:"avatar"`
}

// AvatarURL builds the CDN URL for a user's avatar. Users without a custom
// avatar get one of the built-in ones, picked from the discriminator.
func AvatarURL(userID, avatarHash, discriminator string) string {
	if avatarHash != "" {
		return fmt.Sprintf(avatarURLTemplate, userID, avatarHash)
	}

	return DefaultAvatarURL(discriminator)
}

// DefaultAvatarURL returns the built-in avatar URL for a discriminator.
func DefaultAvatarURL(discriminator string) string {
	return fmt.Sprintf(defaultAvatarURLTemplate, DefaultAvatarIndex(discriminator))
}

// DefaultAvatarIndex maps a discriminator onto [0, 5). Numeric
// discriminators use their value, anything else its FNV-1a hash.
func DefaultAvatarIndex(discriminator string) int {
	if n, err := strconv.ParseUint(discriminator, 10, 64); err == nil {
		return int(n % defaultAvatarCount)
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(discriminator))

	return int(h.Sum32() % defaultAvatarCount)
}
