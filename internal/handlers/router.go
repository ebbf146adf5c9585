package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

type Middleware = func(next http.Handler) http.Handler

func NewRouter(
	auth *AuthHandler,
	post *PostHandler,
	user *UserHandler,
	withAuth Middleware,
	withOptionalAuth Middleware,
	mds ...Middleware,
) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /auth/register", auth.register)
	api.HandleFunc("POST /auth/login", auth.login)
	api.HandleFunc("POST /auth/refresh", auth.refresh)
	api.Handle("POST /auth/logout", withAuth(http.HandlerFunc(auth.logout)))

	api.Handle("GET /users/me", withAuth(http.HandlerFunc(user.me)))
	api.Handle("PATCH /users/me", withAuth(http.HandlerFunc(user.update)))

	api.Handle("POST /posts", withAuth(http.HandlerFunc(post.create)))
	api.Handle("GET /posts", withAuth(http.HandlerFunc(post.list)))
	api.HandleFunc("GET /posts/public", post.publicFeed)
	api.Handle("GET /posts/user/{userID}", withAuth(http.HandlerFunc(post.listUserPosts)))
	api.Handle("GET /posts/{id}", withOptionalAuth(http.HandlerFunc(post.get)))
	api.Handle("DELETE /posts/{id}", withAuth(http.HandlerFunc(post.delete)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("GET /metrics", promhttp.Handler())

	return chain(root, mds...)
}
