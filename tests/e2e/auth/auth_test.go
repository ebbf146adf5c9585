package auth

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovoronin/scribe/internal/testutil"
	"github.com/ovoronin/scribe/tests/e2e"
)

const (
	RegisterURL = "/api/auth/register"
	LoginURL    = "/api/auth/login"
	RefreshURL  = "/api/auth/refresh"
	LogoutURL   = "/api/auth/logout"
	MeURL       = "/api/users/me"
)

const registerBody = `{
	"username": "alice",
	"email": "alice@example.com",
	"displayName": "Alice",
	"password": "secretpassword"
}`

// Client with a cookie jar so auth cookies survive between calls
func newClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method string, url string, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func Test_AuthFlow(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeWithTx(pg.Pool, t, func(tx pgx.Tx, srvURL string, s e2e.Services) {
		t.Run("register sets both cookies and the bearer header", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				client := newClient(t)

				resp, body := doJSON(t, client, http.MethodPost, srvURL+RegisterURL, registerBody)

				require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
				assert.Contains(t, body, `"username":"alice"`)
				assert.NotContains(t, body, "secretpassword", "password must never leak into the response")

				access := cookieByName(resp, "accessToken")
				require.NotNil(t, access, "access cookie should be set")
				assert.True(t, access.HttpOnly, "access cookie should be HttpOnly")
				assert.Equal(t, "/", access.Path)
				assert.NotEmpty(t, access.Value)

				refresh := cookieByName(resp, "refreshToken")
				require.NotNil(t, refresh, "refresh cookie should be set")
				assert.True(t, refresh.HttpOnly, "refresh cookie should be HttpOnly")
				assert.NotEmpty(t, refresh.Value)

				header := resp.Header.Get("Authorization")
				assert.Contains(t, header, "Bearer ")
			})
		})

		t.Run("register logs the user in right away", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				client := newClient(t)

				_, _ = doJSON(t, client, http.MethodPost, srvURL+RegisterURL, registerBody)

				// The jar carries the fresh cookies, no explicit login needed
				resp, body := doJSON(t, client, http.MethodGet, srvURL+MeURL, "")

				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
				assert.Contains(t, body, `"email":"alice@example.com"`)
			})
		})

		t.Run("login then full session lifecycle", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				// Somebody registered earlier, fresh client knows nothing about it
				registrant := newClient(t)
				resp, body := doJSON(t, registrant, http.MethodPost, srvURL+RegisterURL, registerBody)
				require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

				client := newClient(t)

				// Gate rejects an anonymous client
				resp, _ = doJSON(t, client, http.MethodGet, srvURL+MeURL, "")
				require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

				// Login by username
				resp, body = doJSON(t, client, http.MethodPost, srvURL+LoginURL, `{"login": "alice", "password": "secretpassword"}`)
				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
				oldRefresh := cookieByName(resp, "refreshToken")
				require.NotNil(t, oldRefresh)

				// Now the gate lets the client in
				resp, _ = doJSON(t, client, http.MethodGet, srvURL+MeURL, "")
				require.Equal(t, http.StatusOK, resp.StatusCode)

				// Refresh rotates both tokens
				resp, body = doJSON(t, client, http.MethodPost, srvURL+RefreshURL, "")
				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
				newRefresh := cookieByName(resp, "refreshToken")
				require.NotNil(t, newRefresh)
				assert.NotEqual(t, oldRefresh.Value, newRefresh.Value, "refresh token must rotate")

				// Logout clears the cookies
				resp, body = doJSON(t, client, http.MethodPost, srvURL+LogoutURL, "")
				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

				// After logout the refresh token is dead even if somebody kept a copy
				saved := newClient(t)
				req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srvURL+RefreshURL, nil)
				require.NoError(t, err)
				req.AddCookie(&http.Cookie{Name: "refreshToken", Value: newRefresh.Value})
				rawResp, err := saved.Do(req)
				require.NoError(t, err)
				defer func() { _ = rawResp.Body.Close() }()
				require.Equal(t, http.StatusUnauthorized, rawResp.StatusCode, "revoked refresh token must not mint new pairs")
			})
		})

		t.Run("login by email works too", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				registrant := newClient(t)
				resp, body := doJSON(t, registrant, http.MethodPost, srvURL+RegisterURL, registerBody)
				require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

				client := newClient(t)
				resp, body = doJSON(t, client, http.MethodPost, srvURL+LoginURL, `{"login": "alice@example.com", "password": "secretpassword"}`)
				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			})
		})

		t.Run("old refresh token dies after rotation", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				client := newClient(t)
				resp, body := doJSON(t, client, http.MethodPost, srvURL+RegisterURL, registerBody)
				require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

				stolen := cookieByName(resp, "refreshToken")
				require.NotNil(t, stolen)

				// Legit rotation happens
				resp, body = doJSON(t, client, http.MethodPost, srvURL+RefreshURL, "")
				require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

				// Replaying the pre-rotation token fails
				thief := newClient(t)
				req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srvURL+RefreshURL, nil)
				require.NoError(t, err)
				req.AddCookie(&http.Cookie{Name: "refreshToken", Value: stolen.Value})
				rawResp, err := thief.Do(req)
				require.NoError(t, err)
				defer func() { _ = rawResp.Body.Close() }()
				require.Equal(t, http.StatusUnauthorized, rawResp.StatusCode)
			})
		})

		t.Run("wrong password and unknown user look the same", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				registrant := newClient(t)
				resp, body := doJSON(t, registrant, http.MethodPost, srvURL+RegisterURL, registerBody)
				require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

				client := newClient(t)

				resp, wrongPw := doJSON(t, client, http.MethodPost, srvURL+LoginURL, `{"login": "alice", "password": "wrongpassword"}`)
				require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

				resp, unknown := doJSON(t, client, http.MethodPost, srvURL+LoginURL, `{"login": "nobody", "password": "wrongpassword"}`)
				require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

				assert.JSONEq(t, wrongPw, unknown, "responses must not reveal which part was wrong")
			})
		})

		t.Run("bearer header works without cookies", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				client := newClient(t)
				resp, body := doJSON(t, client, http.MethodPost, srvURL+RegisterURL, registerBody)
				require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
				authHeader := resp.Header.Get("Authorization")
				require.NotEmpty(t, authHeader)

				// No jar: only the Authorization header identifies the caller
				req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srvURL+MeURL, nil)
				require.NoError(t, err)
				req.Header.Set("Authorization", authHeader)

				rawResp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				defer func() { _ = rawResp.Body.Close() }()
				require.Equal(t, http.StatusOK, rawResp.StatusCode)
			})
		})

		t.Run("logout is idempotent", func(t *testing.T) {
			testutil.WithTx(tx, t, func(_ pgx.Tx) {
				client := newClient(t)
				resp, body := doJSON(t, client, http.MethodPost, srvURL+RegisterURL, registerBody)
				require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
				authHeader := resp.Header.Get("Authorization")
				require.NotEmpty(t, authHeader)

				resp, _ = doJSON(t, client, http.MethodPost, srvURL+LogoutURL, "")
				require.Equal(t, http.StatusOK, resp.StatusCode)

				// The first logout cleared the cookies but the access token
				// itself stays valid until it expires, so a retry with the
				// bearer header succeeds and changes nothing
				req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srvURL+LogoutURL, nil)
				require.NoError(t, err)
				req.Header.Set("Authorization", authHeader)
				rawResp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				defer func() { _ = rawResp.Body.Close() }()
				require.Equal(t, http.StatusOK, rawResp.StatusCode)
			})
		})
	})
}
