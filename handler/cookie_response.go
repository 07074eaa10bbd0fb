package handler

import "net/http"

type cookieResponse struct {
	next    Response
	cookies []*http.Cookie
}

func (c cookieResponse) Render(w http.ResponseWriter, r *http.Request) error {
	for _, cookie := range c.cookies {
		if cookie != nil {
			http.SetCookie(w, cookie)
		}
	}
	return c.next.Render(w, r)
}

// WithCookies sets cookies before rendering next. Wrap only successful
// responses with it; errors go through Fail and never carry cookies.
func WithCookies(next Response, cookies ...*http.Cookie) Response {
	return cookieResponse{next: next, cookies: cookies}
}
