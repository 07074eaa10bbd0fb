// Package handler provides typed HTTP handlers that bind a request into a Go
// value and return a Response to render.
//
// A HandlerFunc receives a Context, which is the request context plus access
// to the request and response writer, and the bound request value:
//
//	type LoginRequest struct {
//		Email    string `json:"email"`
//		Password string `json:"password"`
//	}
//
//	func login(ctx handler.Context, req LoginRequest) handler.Response {
//		session, err := svc.Login(ctx, req.Email, req.Password)
//		if err != nil {
//			return handler.Fail(err)
//		}
//		return handler.WithCookies(handler.JSON(session), refreshCookie(session))
//	}
//
//	r.Post("/login", handler.Wrap(login,
//		handler.WithBinders[handler.Context, LoginRequest](binder.BindJSON()),
//	))
//
// # Responses
//
// JSON bodies use the JSONResponse envelope with data, meta and error
// members. Empty writes only a status code, Redirect a 3xx with Location and
// WithCookies attaches cookies to another response.
//
// # Errors
//
// Binding failures and errors returned through Fail reach the ErrorHandler.
// NewErrorHandler classifies them with Classify: HTTPError keeps its status
// and key, validator.ValidationErrors becomes 422 with per-field details,
// binder errors become 400, 413 or 415 and anything else becomes a generic
// 500 whose cause is only logged. WithErrorMapper plugs in domain error
// translation.
package handler
