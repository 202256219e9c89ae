package auth

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy source exhausted")
}

func TestStateService_Generate(t *testing.T) {
	svc := NewStateService()

	seen := make(map[string]struct{})
	for range 100 {
		state, err := svc.Generate()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(state)
		require.NoError(t, err)
		assert.Len(t, raw, stateBytes)

		_, dup := seen[state]
		assert.False(t, dup, "state values must not repeat")
		seen[state] = struct{}{}
	}
}

func TestStateService_GenerateFailsWithoutEntropy(t *testing.T) {
	svc := &stateService{random: failingReader{}, ttl: StateTTL}

	state, err := svc.Generate()
	assert.Error(t, err)
	assert.Empty(t, state)
}

func TestStateService_Validate(t *testing.T) {
	svc := NewStateService()

	tests := []struct {
		name     string
		cookie   string
		returned string
		want     bool
	}{
		{name: "equal", cookie: "abc123", returned: "abc123", want: true},
		{name: "mismatch", cookie: "abc123", returned: "abc124", want: false},
		{name: "prefix", cookie: "abc123", returned: "abc", want: false},
		{name: "cookie never set", cookie: "", returned: "abc123", want: false},
		{name: "state missing", cookie: "abc123", returned: "", want: false},
		{name: "both empty", cookie: "", returned: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.Validate(tt.cookie, tt.returned))
		})
	}
}

func TestStateService_TTL(t *testing.T) {
	assert.Equal(t, 600*time.Second, NewStateService().TTL())
}
