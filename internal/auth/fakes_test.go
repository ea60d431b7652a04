package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"golang.org/x/oauth2"
)

// fakeGoogle serves the token and userinfo endpoints.
type fakeGoogle struct {
	mu            sync.Mutex
	server        *httptest.Server
	tokenStatus   int
	tokenBody     map[string]any
	tokenRequests []string
	userinfo      map[string]any
	userinfoAuth  string
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()
	f := &fakeGoogle{
		tokenStatus: http.StatusOK,
		tokenBody: map[string]any{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		},
		userinfo: map[string]any{
			"id":             "1234567890",
			"email":          "ada@example.com",
			"verified_email": true,
			"name":           "Ada Lovelace",
			"picture":        "https://example.com/ada.png",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.tokenRequests = append(f.tokenRequests, r.PostForm.Get("grant_type"))
		status, body := f.tokenStatus, f.tokenBody
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.userinfoAuth = r.Header.Get("Authorization")
		body := f.userinfo
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGoogle) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   f.server.URL + "/auth",
		TokenURL:  f.server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func (f *fakeGoogle) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     f.endpoint(),
	}
}

func (f *fakeGoogle) grants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokenRequests...)
}

func (f *fakeGoogle) setToken(status int, body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus, f.tokenBody = status, body
}

func (f *fakeGoogle) setUserinfo(body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userinfo = body
}
