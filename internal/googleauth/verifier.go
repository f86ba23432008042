// Package googleauth verifies Google Sign-In ID tokens against the tokeninfo endpoint.
package googleauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/salafacil/salafacil/internal/application"
)

// DefaultTokenInfoURL is Google's public ID token introspection endpoint.
const DefaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

var (
	// ErrInvalidToken is returned when Google rejects the credential or its claims do not match.
	ErrInvalidToken = errors.New("googleauth: invalid id token")
)

var validIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// Verifier checks ID tokens through the tokeninfo endpoint.
type Verifier struct {
	client   *http.Client
	endpoint string
	clientID string
	now      func() time.Time
}

var _ application.GoogleVerifier = (*Verifier)(nil)

// NewVerifier builds a verifier. An empty endpoint selects DefaultTokenInfoURL
// and an empty clientID skips the audience check.
func NewVerifier(client *http.Client, endpoint, clientID string) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultTokenInfoURL
	}
	return &Verifier{
		client:   client,
		endpoint: endpoint,
		clientID: strings.TrimSpace(clientID),
		now:      time.Now,
	}
}

type tokenInfo struct {
	Audience      string `json:"aud"`
	Issuer        string `json:"iss"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Expiry        string `json:"exp"`
}

// Verify resolves credential into the identity Google vouches for.
func (v *Verifier) Verify(ctx context.Context, credential string) (application.GoogleIdentity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return application.GoogleIdentity{}, ErrInvalidToken
	}

	endpoint, err := url.Parse(v.endpoint)
	if err != nil {
		return application.GoogleIdentity{}, fmt.Errorf("googleauth: parse endpoint: %w", err)
	}
	query := endpoint.Query()
	query.Set("id_token", credential)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return application.GoogleIdentity{}, fmt.Errorf("googleauth: build request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return application.GoogleIdentity{}, fmt.Errorf("googleauth: tokeninfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return application.GoogleIdentity{}, fmt.Errorf("googleauth: read tokeninfo: %w", err)
	}
	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return application.GoogleIdentity{}, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return application.GoogleIdentity{}, fmt.Errorf("googleauth: tokeninfo returned %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return application.GoogleIdentity{}, fmt.Errorf("googleauth: decode tokeninfo: %w", err)
	}
	if err := v.check(info); err != nil {
		return application.GoogleIdentity{}, err
	}

	return application.GoogleIdentity{
		Subject:       info.Subject,
		Email:         strings.ToLower(strings.TrimSpace(info.Email)),
		EmailVerified: info.EmailVerified == "true",
		Name:          info.Name,
		Picture:       info.Picture,
	}, nil
}

func (v *Verifier) check(info tokenInfo) error {
	if info.Subject == "" || info.Email == "" {
		return fmt.Errorf("%w: missing subject or email", ErrInvalidToken)
	}
	if info.Issuer != "" && !validIssuers[info.Issuer] {
		return fmt.Errorf("%w: issuer %q", ErrInvalidToken, info.Issuer)
	}
	if v.clientID != "" && info.Audience != v.clientID {
		return fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	if info.Expiry != "" {
		exp, err := strconv.ParseInt(info.Expiry, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad exp %q", ErrInvalidToken, info.Expiry)
		}
		if !v.now().Before(time.Unix(exp, 0)) {
			return fmt.Errorf("%w: expired", ErrInvalidToken)
		}
	}
	return nil
}
