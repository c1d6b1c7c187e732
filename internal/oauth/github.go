// Package oauth implements the GitHub identity-provider handoff: redirect,
// code exchange and profile fetch.  Account creation from the fetched
// profile is the auth handler's job.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// ErrNoPublicEmail is returned when the GitHub profile carries no email
// address; the account cannot be linked without one.
var ErrNoPublicEmail = errors.New("github profile has no public email")

// Profile is the subset of the GitHub user we care about.
type Profile struct {
	GitHubID string
	Username string
	Email    string
	Avatar   string
}

// GitHub wraps the OAuth2 authorization-code flow against github.com.
type GitHub struct {
	cfg *oauth2.Config
}

func NewGitHub(clientID, clientSecret, callbackURL string) *GitHub {
	return &GitHub{cfg: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{"user:email"},
		Endpoint:     github.Endpoint,
	}}
}

// Enabled reports whether an OAuth app is configured.
func (g *GitHub) Enabled() bool { return g.cfg.ClientID != "" }

// AuthURL returns the GitHub consent page URL for the given state.
func (g *GitHub) AuthURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and fetches the user's
// profile.
func (g *GitHub) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("github exchange: %w", err)
	}

	client := g.cfg.Client(ctx, tok)
	client.Timeout = 10 * time.Second

	var raw struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &raw); err != nil {
		return Profile{}, err
	}

	email := raw.Email
	if email == "" {
		// The profile email is only populated when set public; fall back to
		// the primary address from the emails endpoint.
		var emails []struct {
			Email   string `json:"email"`
			Primary bool   `json:"primary"`
		}
		if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err == nil {
			for _, e := range emails {
				if e.Primary {
					email = e.Email
					break
				}
			}
		}
	}
	if email == "" {
		return Profile{}, ErrNoPublicEmail
	}

	username := raw.Name
	if username == "" {
		username = raw.Login
	}
	return Profile{
		GitHubID: fmt.Sprintf("%d", raw.ID),
		Username: username,
		Email:    email,
		Avatar:   raw.AvatarURL,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api: unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
