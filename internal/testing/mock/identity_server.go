package mock

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// jwtHeader is the pre-computed base64-encoded JWT header for unsigned tokens.
// Value: base64url({"alg":"none","typ":"JWT"})
//
// Tokens carrying this header are for tests only. The Entra provider reads ID
// token claims without verifying signatures because the token arrives straight
// from the token endpoint; it never accepts ID tokens from any other source.
const jwtHeader = "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0"

// User is an account known to the identity server.
type User struct {
	ObjectID string
	TenantID string
	Username string
	Name     string
}

// HomeAccountID returns the identity key the provider derives for this user.
func (u User) HomeAccountID() string {
	return u.ObjectID + "." + u.TenantID
}

// IdentityServerConfig configures the mock identity server behavior.
type IdentityServerConfig struct {
	// ClientID is the expected public client ID.
	ClientID string

	// TokenLifetime is how long issued access tokens remain valid.
	TokenLifetime time.Duration

	// User is the account that completes interactive sign-ins.
	User User

	// Clock is used to compute token expiry. Defaults to real time.
	Clock interface{ Now() time.Time }
}

// ErrorSimulation allows simulating token endpoint failures.
type ErrorSimulation struct {
	// AuthorizationCodeError rejects code redemption with this OAuth error code.
	AuthorizationCodeError string

	// RefreshError rejects refresh_token grants with this OAuth error code.
	RefreshError string
}

// TokenRequest records a request received by the token endpoint.
type TokenRequest struct {
	GrantType string
	Scope     string
	ClientID  string
}

// IdentityServer is a mock Microsoft identity platform (v2.0 endpoints).
type IdentityServer struct {
	server *httptest.Server
	config IdentityServerConfig

	mu            sync.Mutex
	authCodes     map[string]*authCodeEntry
	refreshTokens map[string]User
	requests      []TokenRequest
	simulate      ErrorSimulation
	issued        int
}

type authCodeEntry struct {
	ClientID        string
	RedirectURI     string
	Scope           string
	CodeChallenge   string
	ChallengeMethod string
	User            User
}

// TokenResponse is the token endpoint response body.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// NewIdentityServer starts a mock identity server. Call Close when done.
func NewIdentityServer(config IdentityServerConfig) *IdentityServer {
	if config.TokenLifetime == 0 {
		config.TokenLifetime = time.Hour
	}
	if config.ClientID == "" {
		config.ClientID = "test-client"
	}
	if config.User.ObjectID == "" {
		config.User = User{
			ObjectID: "00000000-0000-0000-0000-0000000000aa",
			TenantID: "11111111-1111-1111-1111-111111111111",
			Username: "jane@contoso.com",
			Name:     "Jane Doe",
		}
	}
	if config.Clock == nil {
		config.Clock = realNow{}
	}

	s := &IdentityServer{
		config:        config,
		authCodes:     make(map[string]*authCodeEntry),
		refreshTokens: make(map[string]User),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/oauth2/v2.0/authorize"):
			s.handleAuthorize(w, r)
		case strings.HasSuffix(r.URL.Path, "/oauth2/v2.0/token"):
			s.handleToken(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	s.server = httptest.NewServer(mux)
	return s
}

type realNow struct{}

func (realNow) Now() time.Time { return time.Now() }

// Close shuts the server down.
func (s *IdentityServer) Close() {
	s.server.Close()
}

// Authority returns the authority URL for the "organizations" tenant.
func (s *IdentityServer) Authority() string {
	return s.server.URL + "/organizations"
}

// ClientID returns the accepted client ID.
func (s *IdentityServer) ClientID() string {
	return s.config.ClientID
}

// HTTPClient returns a client that talks to the server.
func (s *IdentityServer) HTTPClient() *http.Client {
	return s.server.Client()
}

// SetUser changes the account that completes subsequent sign-ins.
func (s *IdentityServer) SetUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.User = u
}

// Simulate replaces the current error simulation.
func (s *IdentityServer) Simulate(sim ErrorSimulation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simulate = sim
}

// RevokeRefreshTokens invalidates every refresh token issued to u.
func (s *IdentityServer) RevokeRefreshTokens(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for rt, owner := range s.refreshTokens {
		if owner.ObjectID == u.ObjectID && owner.TenantID == u.TenantID {
			delete(s.refreshTokens, rt)
		}
	}
}

// TokenRequests returns the token endpoint requests received so far.
func (s *IdentityServer) TokenRequests() []TokenRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TokenRequest(nil), s.requests...)
}

// CountGrant returns how many token requests used the given grant type.
func (s *IdentityServer) CountGrant(grantType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.GrantType == grantType {
			n++
		}
	}
	return n
}

// Authorize simulates the user approving the request described by authURL.
// It returns the redirect URL the browser would be sent to.
func (s *IdentityServer) Authorize(authURL string) (string, error) {
	u, err := url.Parse(authURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if q.Get("response_type") != "code" {
		return "", fmt.Errorf("unsupported response_type %q", q.Get("response_type"))
	}
	if q.Get("client_id") != s.config.ClientID {
		return "", fmt.Errorf("unknown client_id %q", q.Get("client_id"))
	}
	if q.Get("code_challenge") == "" {
		return "", fmt.Errorf("PKCE required: code_challenge missing")
	}

	code := s.GenerateAuthCode(q.Get("client_id"), q.Get("redirect_uri"), q.Get("scope"),
		q.Get("code_challenge"), q.Get("code_challenge_method"))

	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		return "", fmt.Errorf("invalid redirect_uri: %w", err)
	}
	rq := redirect.Query()
	rq.Set("code", code)
	rq.Set("state", q.Get("state"))
	redirect.RawQuery = rq.Encode()
	return redirect.String(), nil
}

// GenerateAuthCode issues an authorization code for the current user.
func (s *IdentityServer) GenerateAuthCode(clientID, redirectURI, scope, codeChallenge, method string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := generateOpaqueToken()
	s.authCodes[code] = &authCodeEntry{
		ClientID:        clientID,
		RedirectURI:     redirectURI,
		Scope:           scope,
		CodeChallenge:   codeChallenge,
		ChallengeMethod: method,
		User:            s.config.User,
	}
	return code
}

func (s *IdentityServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	redirect, err := s.Authorize(r.URL.String())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (s *IdentityServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "malformed form body")
		return
	}

	grantType := r.PostFormValue("grant_type")
	s.mu.Lock()
	s.requests = append(s.requests, TokenRequest{
		GrantType: grantType,
		Scope:     r.PostFormValue("scope"),
		ClientID:  r.PostFormValue("client_id"),
	})
	sim := s.simulate
	s.mu.Unlock()

	if r.PostFormValue("client_id") != s.config.ClientID {
		writeOAuthError(w, "invalid_client", "unknown client")
		return
	}

	switch grantType {
	case "authorization_code":
		if sim.AuthorizationCodeError != "" {
			writeOAuthError(w, sim.AuthorizationCodeError, "simulated failure")
			return
		}
		s.handleAuthCodeExchange(w, r)
	case "refresh_token":
		if sim.RefreshError != "" {
			writeOAuthError(w, sim.RefreshError, "AADSTS70008: simulated refresh failure")
			return
		}
		s.handleRefreshToken(w, r)
	default:
		writeOAuthError(w, "unsupported_grant_type", fmt.Sprintf("grant_type %s not supported", grantType))
	}
}

func (s *IdentityServer) handleAuthCodeExchange(w http.ResponseWriter, r *http.Request) {
	code := r.PostFormValue("code")

	s.mu.Lock()
	entry, exists := s.authCodes[code]
	delete(s.authCodes, code)
	s.mu.Unlock()

	if !exists {
		writeOAuthError(w, "invalid_grant", "authorization code not found or already redeemed")
		return
	}
	if entry.RedirectURI != r.PostFormValue("redirect_uri") {
		writeOAuthError(w, "invalid_grant", "redirect_uri mismatch")
		return
	}
	if !verifyPKCE(entry.CodeChallenge, entry.ChallengeMethod, r.PostFormValue("code_verifier")) {
		writeOAuthError(w, "invalid_grant", "code_verifier verification failed")
		return
	}

	s.issue(w, entry.User, entry.Scope)
}

func (s *IdentityServer) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	scope := r.PostFormValue("scope")
	if scope == "" {
		writeOAuthError(w, "invalid_request", "scope is required")
		return
	}

	s.mu.Lock()
	user, ok := s.refreshTokens[r.PostFormValue("refresh_token")]
	s.mu.Unlock()
	if !ok {
		writeOAuthError(w, "invalid_grant", "refresh token not found")
		return
	}

	s.issue(w, user, scope)
}

func (s *IdentityServer) issue(w http.ResponseWriter, user User, scope string) {
	s.mu.Lock()
	s.issued++
	accessToken := fmt.Sprintf("at-%s-%d", user.ObjectID, s.issued)
	refreshToken := generateOpaqueToken()
	s.refreshTokens[refreshToken] = user
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.config.TokenLifetime.Seconds()),
		Scope:        scope,
		IDToken:      s.generateIDToken(user),
	})
}

func (s *IdentityServer) generateIDToken(user User) string {
	now := s.config.Clock.Now()
	claims := map[string]any{
		"iss":                s.server.URL + "/" + user.TenantID + "/v2.0",
		"sub":                "sub-" + user.ObjectID,
		"aud":                s.config.ClientID,
		"iat":                now.Unix(),
		"exp":                now.Add(s.config.TokenLifetime).Unix(),
		"oid":                user.ObjectID,
		"tid":                user.TenantID,
		"preferred_username": user.Username,
		"name":               user.Name,
	}
	payload, _ := json.Marshal(claims)
	return jwtHeader + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func verifyPKCE(challenge, method, verifier string) bool {
	if challenge == "" || verifier == "" || method != "S256" {
		return false
	}
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:]) == challenge
}

func writeOAuthError(w http.ResponseWriter, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func generateOpaqueToken() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
