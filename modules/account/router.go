package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ztruyen/ztc-auth/binder"
	"github.com/ztruyen/ztc-auth/handler"
)

type endpoint struct {
	method  string
	pattern string
	route   Route
	handler http.HandlerFunc
}

// Handler returns the module routes, relative to the /auth mount point.
//
//	r := chi.NewRouter()
//	r.Mount("/auth", account.New(svc, jar, opts...).Handler())
func (m *Module) Handler() http.Handler {
	r := chi.NewRouter()
	for _, e := range m.endpoints() {
		r.With(Authorize(e.route, m.svc, m.errorHandler)).Method(e.method, e.pattern, e.handler)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		m.errorHandler(handler.NewContext(w, r), handler.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		m.errorHandler(handler.NewContext(w, r), handler.ErrMethodNotAllowed)
	})
	return r
}

func (m *Module) endpoints() []endpoint {
	eps := []endpoint{
		{http.MethodPost, "/login", Public, wrapJSON(m, m.login)},
		{http.MethodPost, "/register", Public, wrapJSON(m, m.register)},
		{http.MethodGet, "/refresh", Public, wrap(m, m.refresh)},
		{http.MethodPost, "/logout", Authenticated(), wrap(m, m.logout)},
		{http.MethodPost, "/forgot-password", Public, wrapJSON(m, m.forgotPassword)},
		{http.MethodPost, "/reset-password", Public, wrapJSON(m, m.resetPassword)},
		{http.MethodGet, "/account", Authenticated(), wrap(m, m.account)},
	}

	for _, p := range m.providers {
		eps = append(eps,
			endpoint{http.MethodGet, "/" + string(p), Public, wrapQuery(m, m.socialStart(p))},
			endpoint{http.MethodGet, "/" + string(p) + "/callback", Public, wrapQuery(m, m.socialCallback(p))},
		)
	}
	return eps
}

func wrap[R any](m *Module, h func(handler.Context, R) handler.Response, binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[handler.Context, R](h),
		handler.WithBinders[handler.Context, R](binders...),
		handler.WithErrorHandler[handler.Context, R](m.errorHandler),
	)
}

func wrapJSON[R any](m *Module, h func(handler.Context, R) handler.Response) http.HandlerFunc {
	return wrap(m, h, binder.BindJSON())
}

func wrapQuery[R any](m *Module, h func(handler.Context, R) handler.Response) http.HandlerFunc {
	return wrap(m, h, binder.BindQuery())
}
