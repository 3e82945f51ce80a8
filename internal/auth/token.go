package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnauthorized is returned for any token that fails verification.
var ErrUnauthorized = errors.New("unauthorized")

// Claims holds game and player identity for HTTP moves and WebSocket auth.
type Claims struct {
	GameID    string `json:"game_id"`
	PlayerID  string `json:"player_id"`
	Moderator bool   `json:"moderator,omitempty"`
	Exp       int64  `json:"exp"`
}

// DefaultTokenExpiry is the default lifetime for player tokens.
const DefaultTokenExpiry = 24 * time.Hour

// GenerateToken creates an HMAC-SHA256 signed token for a player of a game.
// Format: base64url(payload).base64url(signature).
func GenerateToken(gameID, playerID string, moderator bool, secret []byte, expiry time.Duration) (token string, expiresAt time.Time, err error) {
	if len(secret) == 0 {
		return "", time.Time{}, fmt.Errorf("token secret is required")
	}
	expiresAt = time.Now().UTC().Add(expiry)
	claims := Claims{
		GameID:    gameID,
		PlayerID:  playerID,
		Moderator: moderator,
		Exp:       expiresAt.Unix(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal claims: %w", err)
	}
	b64Payload := base64.RawURLEncoding.EncodeToString(payload)
	return b64Payload + "." + sign(b64Payload, secret), expiresAt, nil
}

func sign(b64Payload string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(b64Payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyToken verifies the signature and returns claims. Returns error if expired or invalid.
func VerifyToken(token string, secret []byte) (*Claims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret is required")
	}
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: invalid token format", ErrUnauthorized)
	}
	b64Payload, b64Sig := parts[0], parts[1]

	sig, err := base64.RawURLEncoding.DecodeString(b64Sig)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token signature encoding", ErrUnauthorized)
	}
	expected, _ := base64.RawURLEncoding.DecodeString(sign(b64Payload, secret))
	if !hmac.Equal(sig, expected) {
		return nil, fmt.Errorf("%w: invalid token signature", ErrUnauthorized)
	}

	payload, err := base64.RawURLEncoding.DecodeString(b64Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token payload encoding", ErrUnauthorized)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: invalid token payload: %v", ErrUnauthorized, err)
	}

	if time.Now().UTC().Unix() > claims.Exp {
		return nil, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	if claims.GameID == "" || claims.PlayerID == "" {
		return nil, fmt.Errorf("%w: missing game_id or player_id", ErrUnauthorized)
	}
	return &claims, nil
}

// TokenFromRequest returns the token from the "token" query parameter or
// an Authorization Bearer header.
func TokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	const prefix = "Bearer "
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}
	return ""
}
