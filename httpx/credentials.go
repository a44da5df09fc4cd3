package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/oauth"
	"github.com/mbolis/mediflow/config"
	"github.com/mbolis/mediflow/database"
)

// Claims carried by staff access tokens.
const (
	ClaimRoles  = "roles"
	ClaimClinic = "clinic"
)

type credentialsVerifier struct {
	store *database.Store
}

func CredentialsVerifier(store *database.Store) oauth.CredentialsVerifier {
	return &credentialsVerifier{store}
}

// NewBearerServer issues password-grant tokens for the staff of a clinic.
func NewBearerServer(store *database.Store, cfg config.Config) *oauth.BearerServer {
	return oauth.NewBearerServer(cfg.TokenSecret, cfg.TokenTTL, CredentialsVerifier(store), nil)
}

func (cs *credentialsVerifier) ValidateUser(username string, password string, scope string, r *http.Request) error {
	return cs.store.CheckPassword(r.Context(), username, password)
}

func (cs *credentialsVerifier) StoreTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.store.StoreToken(context.Background(), credential, tokenID, refreshTokenID)
}

func (cs *credentialsVerifier) ValidateTokenID(tokenType oauth.TokenType, credential string, tokenID string, refreshTokenID string) error {
	return cs.store.ConsumeToken(context.Background(), credential, tokenID, refreshTokenID)
}

// AddClaims puts the user roles and clinic in the token, so admin requests
// are scoped without a lookup.
func (cs *credentialsVerifier) AddClaims(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	u, err := cs.store.User(r.Context(), credential)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		ClaimRoles:  u.Roles,
		ClaimClinic: u.ClinicID,
	}, nil
}

func (*credentialsVerifier) AddProperties(tokenType oauth.TokenType, credential string, tokenID string, scope string, r *http.Request) (map[string]string, error) {
	return map[string]string{}, nil
}

func (*credentialsVerifier) ValidateClient(clientID string, clientSecret string, scope string, r *http.Request) error {
	return errors.New("not supported")
}
