package oauth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeSet(t *testing.T) {
	a := ScopeSet{"openid", "https://redis.azure.com/.default", "openid"}
	b := ScopeSet{"https://redis.azure.com/.default", "openid"}

	assert.Equal(t, "openid https://redis.azure.com/.default openid", a.String())
	assert.Equal(t, b.Key(), a.Key())
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(ScopeSet{"openid"}))
	// Key must not reorder the receiver.
	assert.Equal(t, "openid", a[0])
}

func TestTokenResult_IsExpiredWithMargin(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresOn time.Time
		margin    time.Duration
		want      bool
	}{
		{"well before margin", now.Add(time.Hour), 5 * time.Minute, false},
		{"inside margin", now.Add(4 * time.Minute), 5 * time.Minute, true},
		{"exactly at margin", now.Add(5 * time.Minute), 5 * time.Minute, true},
		{"already expired", now.Add(-time.Minute), 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &TokenResult{ExpiresOn: tc.expiresOn}
			assert.Equal(t, tc.want, r.IsExpiredWithMargin(now, tc.margin))
		})
	}

	var nilResult *TokenResult
	assert.True(t, nilResult.IsExpiredWithMargin(now, 0))
}

func signedIDToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestParseIDTokenClaims(t *testing.T) {
	idToken := signedIDToken(t, jwt.MapClaims{
		"oid":                "00000000-0000-0000-0000-0000000000aa",
		"tid":                "11111111-1111-1111-1111-111111111111",
		"preferred_username": "jane@example.com",
		"name":               "Jane Doe",
		"sub":                "subject",
	})

	claims, err := ParseIDTokenClaims(idToken)
	require.NoError(t, err)

	identity, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-0000000000aa.11111111-1111-1111-1111-111111111111", identity.HomeAccountID)
	assert.Equal(t, "00000000-0000-0000-0000-0000000000aa", identity.LocalAccountID)
	assert.Equal(t, "jane@example.com", identity.Username)
	assert.Equal(t, "Jane Doe", identity.DisplayName)
	assert.Equal(t, identity.HomeAccountID, identity.Key())
}

func TestParseIDTokenClaims_Errors(t *testing.T) {
	_, err := ParseIDTokenClaims("")
	assert.Error(t, err)

	_, err = ParseIDTokenClaims("not-a-jwt")
	assert.Error(t, err)

	claims, err := ParseIDTokenClaims(signedIDToken(t, jwt.MapClaims{"name": "no ids"}))
	require.NoError(t, err)
	_, err = claims.Identity()
	assert.Error(t, err)
}

func TestIDTokenClaims_FallsBackToSubjectAndEmail(t *testing.T) {
	claims, err := ParseIDTokenClaims(signedIDToken(t, jwt.MapClaims{
		"sub":   "subject-id",
		"tid":   "tenant",
		"email": "bob@example.com",
	}))
	require.NoError(t, err)

	identity, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, "subject-id.tenant", identity.HomeAccountID)
	assert.Equal(t, "bob@example.com", identity.Username)
}
