package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

var (
	testManagementScopes = pkgoauth.ScopeSet{"https://management.azure.com/user_impersonation", "offline_access", "openid", "profile"}
	testDataPlaneScopes  = pkgoauth.ScopeSet{"https://redis.azure.com/.default", "offline_access", "openid", "profile"}
)

func testIdentity(oid string) pkgoauth.IdentityReference {
	return pkgoauth.IdentityReference{
		HomeAccountID:  oid + ".tenant",
		LocalAccountID: oid,
		TenantID:       "tenant",
		Username:       oid + "@contoso.com",
	}
}

// fakeProvider is an in-memory IdentityProvider with scripted silent results.
type fakeProvider struct {
	mu       sync.Mutex
	accounts map[string]pkgoauth.IdentityReference
	now      func() time.Time

	silentErr   error
	beforeReply func(req SilentRequest)
	silentCalls []SilentRequest
	removed     []string
	issued      int
}

func newFakeProvider(now func() time.Time, identities ...pkgoauth.IdentityReference) *fakeProvider {
	p := &fakeProvider{accounts: make(map[string]pkgoauth.IdentityReference), now: now}
	for _, id := range identities {
		p.accounts[id.HomeAccountID] = id
	}
	return p
}

func (p *fakeProvider) AuthCodeURL(state, verifier string, scopes pkgoauth.ScopeSet) (string, error) {
	return "https://login.example/authorize?state=" + state, nil
}

func (p *fakeProvider) ExchangeCode(ctx context.Context, code, verifier string, scopes pkgoauth.ScopeSet) (*pkgoauth.TokenResult, error) {
	return nil, fmt.Errorf("not supported")
}

func (p *fakeProvider) AcquireTokenSilent(ctx context.Context, req SilentRequest) (*pkgoauth.TokenResult, error) {
	p.mu.Lock()
	p.silentCalls = append(p.silentCalls, req)
	identity, ok := p.accounts[req.HomeAccountID]
	err := p.silentErr
	hook := p.beforeReply
	p.issued++
	n := p.issued
	p.mu.Unlock()

	if hook != nil {
		hook(req)
		_, ok = p.Account(req.HomeAccountID)
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &pkgoauth.TokenResult{
		Token:     fmt.Sprintf("silent-%d", n),
		ExpiresOn: p.now().Add(time.Hour),
		Identity:  identity,
		Scopes:    req.Scopes,
	}, nil
}

func (p *fakeProvider) Account(homeAccountID string) (pkgoauth.IdentityReference, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.accounts[homeAccountID]
	return id, ok
}

func (p *fakeProvider) Accounts() []pkgoauth.IdentityReference {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]pkgoauth.IdentityReference, 0, len(p.accounts))
	for _, id := range p.accounts {
		ids = append(ids, id)
	}
	return ids
}

func (p *fakeProvider) RemoveAccount(homeAccountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.accounts, homeAccountID)
	p.removed = append(p.removed, homeAccountID)
}

func (p *fakeProvider) calls() []SilentRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SilentRequest(nil), p.silentCalls...)
}
