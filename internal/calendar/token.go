package calendar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

// TokenFileName is the credential file inside a user's token directory.
const TokenFileName = "token.json"

// LoadToken reads the credential stored in dir. It returns nil without an
// error when no credential has been stored yet.
func LoadToken(dir string) (*oauth2.Token, error) {
	data, err := os.ReadFile(filepath.Join(dir, TokenFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read token: %w", err)
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("parse token: no access or refresh token")
	}
	return tok, nil
}

// SaveToken writes tok to dir with owner-only permissions.
func SaveToken(dir string, tok *oauth2.Token) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, TokenFileName)); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// persistingTokenSource saves every token its source produces.
type persistingTokenSource struct {
	src  oauth2.TokenSource
	save func(*oauth2.Token)
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.save(tok)
	return tok, nil
}

// NewState returns the OAuth state value for userID and nonce.
func NewState(userID, nonce string) string {
	return userID + ":" + nonce
}

// ParseState splits an OAuth state value into user id and nonce.
func ParseState(state string) (userID, nonce string, err error) {
	i := strings.LastIndex(state, ":")
	if i <= 0 || i == len(state)-1 {
		return "", "", fmt.Errorf("malformed state %q", state)
	}
	return state[:i], state[i+1:], nil
}
