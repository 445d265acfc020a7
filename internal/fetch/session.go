package fetch

import (
	"fmt"
	"net/http"
	"strings"
)

// Session is the credential forwarded with every request of one fetch. It is
// obtained out of band, usually by copying the Cookie header of a logged-in
// browser.
type Session struct {
	Cookies []*http.Cookie
	Header  http.Header
}

// ParseSession reads a Cookie header value such as "_session_tid=abc; tid=xyz".
func ParseSession(cookieHeader string) (Session, error) {
	cookieHeader = strings.TrimSpace(cookieHeader)
	if cookieHeader == "" {
		return Session{}, fmt.Errorf("session: empty cookie header")
	}
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return Session{}, fmt.Errorf("session: %w", err)
	}
	return Session{Cookies: cookies}, nil
}

func (s Session) apply(req *http.Request) {
	for k, vs := range s.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, c := range s.Cookies {
		req.AddCookie(c)
	}
}
