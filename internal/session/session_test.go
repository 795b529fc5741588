package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignParseRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := Sign(42, secret)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := Parse(token, secret)
	require.NoError(t, err)
	require.Equal(t, uint(42), userID)
}

func TestParseWrongSecret(t *testing.T) {
	token, err := Sign(42, []byte("right"))
	require.NoError(t, err)

	_, err = Parse(token, []byte("wrong"))
	require.Error(t, err)
}

func TestParseGarbage(t *testing.T) {
	_, err := Parse("not-a-token", []byte("secret"))
	require.Error(t, err)
}

func TestCookieShape(t *testing.T) {
	c := Cookie("value")
	require.Equal(t, CookieName, c.Name)
	require.True(t, c.HttpOnly)
	require.Equal(t, int(MaxAge.Seconds()), c.MaxAge)

	cleared := ExpiredCookie()
	require.Equal(t, CookieName, cleared.Name)
	require.Negative(t, cleared.MaxAge)
}
