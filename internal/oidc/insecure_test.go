package oidc

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func unsignedToken(payload string) string {
	enc := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return "h." + enc + ".s"
}

func TestInsecureVerifierParsesClaims(t *testing.T) {
	v := NewInsecureVerifier()
	tok, err := v.Verify(context.Background(), unsignedToken(`{"preferred_username": "alice", "sub": "u-1"}`))
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "alice", claims["preferred_username"])
	require.Equal(t, "u-1", claims["sub"])
}

func TestInsecureVerifierRejectsGarbage(t *testing.T) {
	v := NewInsecureVerifier()

	_, err := v.Verify(context.Background(), "not-a-jwt")
	require.Error(t, err)

	_, err = v.Verify(context.Background(), "h.!!!.s")
	require.Error(t, err)

	_, err = v.Verify(context.Background(), unsignedToken("not json"))
	require.Error(t, err)
}
