package engine

import (
	"net/http"
	"strings"
	"sync"
)

// Session accumulates cookies set by origin responses and replays them on
// every page request. One Session is created at startup and shared by all
// handlers; it is never pruned, so it grows with the set of distinct cookie
// names the origin hands out.
//
// Concurrent requests may interleave merges and reads. The mutex only keeps
// the map consistent; there is no ordering between requests, the last merge
// of a name wins.
type Session struct {
	mu      sync.RWMutex
	order   []string
	cookies map[string]string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{cookies: make(map[string]string)}
}

// Merge records every Set-Cookie of resp, replacing values by name.
// Cookies with an empty value are treated as deletions.
func (s *Session) Merge(resp *http.Response) {
	if resp == nil {
		return
	}
	s.SetCookies(resp.Cookies())
}

// SetCookies merges cookies into the session.
func (s *Session) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		if c.Value == "" || c.MaxAge < 0 {
			s.remove(c.Name)
			continue
		}
		if _, ok := s.cookies[c.Name]; !ok {
			s.order = append(s.order, c.Name)
		}
		s.cookies[c.Name] = c.Value
	}
}

func (s *Session) remove(name string) {
	if _, ok := s.cookies[name]; !ok {
		return
	}
	delete(s.cookies, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Header renders the session as a Cookie header value, in first-seen order.
func (s *Session) Header() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sb strings.Builder
	for i, name := range s.order {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(s.cookies[name])
	}
	return sb.String()
}

// Len reports how many cookies the session holds.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cookies)
}
