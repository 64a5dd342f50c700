package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringManager_GitHubToken(t *testing.T) {
	keyring.MockInit()
	km := NewKeyringManager(nil)
	require.True(t, km.IsAvailable())

	token, err := km.GetGitHubToken()
	require.NoError(t, err)
	assert.Empty(t, token, "missing token is not an error")

	require.NoError(t, km.SetGitHubToken("ghp_test1234567890"))
	token, err = km.GetGitHubToken()
	require.NoError(t, err)
	assert.Equal(t, "ghp_test1234567890", token)

	require.NoError(t, km.DeleteGitHubToken())
	token, err = km.GetGitHubToken()
	require.NoError(t, err)
	assert.Empty(t, token)

	// deleting twice is fine
	require.NoError(t, km.DeleteGitHubToken())
}

func TestKeyringManager_RejectsEmptyToken(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, NewKeyringManager(nil).SetGitHubToken(""))
}

func TestKeyringManager_Unavailable(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)
	km := NewKeyringManager(nil)
	assert.False(t, km.IsAvailable())

	_, err := km.GetGitHubToken()
	assert.Error(t, err)
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"ghp_abcdefghijklmnop", "ghp_abc...mnop"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskToken(tt.token))
	}
}
