package credentials_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

func TestParseAccessClaims(t *testing.T) {
	exp := time.Now().Add(5 * time.Minute).Truncate(time.Second)

	tests := []struct {
		name   string
		claims jwt.MapClaims
		wantID int64
		wantOK bool
	}{
		{"numeric user id", jwt.MapClaims{"user_id": 42, "exp": exp.Unix(), "token_type": "access"}, 42, true},
		{"string user id", jwt.MapClaims{"user_id": "7", "exp": exp.Unix()}, 7, true},
		{"no user id", jwt.MapClaims{"exp": exp.Unix()}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := credentials.ParseAccessClaims(signed(t, tt.claims))
			require.NoError(t, err)

			id, ok := c.User()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
			assert.True(t, c.Expiry().Equal(exp))
		})
	}
}

func TestParseAccessClaims_Opaque(t *testing.T) {
	_, err := credentials.ParseAccessClaims("not-a-jwt")
	require.Error(t, err)

	_, err = credentials.ParseAccessClaims("")
	require.Error(t, err)
}

func TestParseAccessClaims_ExpiredStillDecodes(t *testing.T) {
	c, err := credentials.ParseAccessClaims(signed(t, jwt.MapClaims{"user_id": 1, "exp": time.Now().Add(-time.Hour).Unix()}))
	require.NoError(t, err)
	assert.True(t, c.Expiry().Before(time.Now()))
}
