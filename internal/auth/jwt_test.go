package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskradar/taskradar/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	userID := uuid.New()

	token, err := IssueToken(secret, userID, domain.RoleProvider)
	require.NoError(t, err)

	gotID, gotRole, err := ParseToken(secret, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, domain.RoleProvider, gotRole)
}

func TestParseTokenRejectsBadInput(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueToken(secret, uuid.New(), domain.RoleCustomer)
	require.NoError(t, err)

	_, _, err = ParseToken([]byte("other-secret"), "Bearer "+token)
	assert.Error(t, err, "tokens signed with a different secret must fail")

	_, _, err = ParseToken(secret, token)
	assert.Error(t, err, "the Bearer prefix is required")

	_, _, err = ParseToken(secret, "")
	assert.Error(t, err)

	_, _, err = ParseToken(secret, "Bearer not-a-token")
	assert.Error(t, err)
}
