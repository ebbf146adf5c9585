package e2e

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stretchr/testify/require"

	"github.com/ovoronin/scribe/internal/handlers"
	"github.com/ovoronin/scribe/internal/handlers/middleware"
	"github.com/ovoronin/scribe/internal/repository/postgres"
	"github.com/ovoronin/scribe/internal/service/auth"
	"github.com/ovoronin/scribe/internal/service/auth/tokenmanager"
	"github.com/ovoronin/scribe/internal/service/post"
	"github.com/ovoronin/scribe/internal/testutil"
)

type Services struct {
	AuthService *auth.AuthService
	PostService *post.PostService
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)

		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewService(auth.Config{InsecureCookies: true}, tokenManager, storage.User())
		require.NoError(t, err, "auth service starting error", err)

		ps := post.NewService(storage.Post())

		router := handlers.NewRouter(
			handlers.NewAuth(as),
			handlers.NewPost(ps),
			handlers.NewUser(storage.User()),
			middleware.AuthMiddleware(as),
			middleware.OptionalAuthMiddleware(as),
		)

		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			AuthService: as,
			PostService: ps,
		})
	})
}
