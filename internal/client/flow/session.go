package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// session is the on-disk form of the cookies a CLI keeps between invocations.
type session struct {
	BaseURL string            `json:"base_url"`
	Cookies map[string]string `json:"cookies"`
}

// LoadSession restores cookies saved by SaveSession for baseURL into jar.
// A missing file, or one saved for another base URL, is not an error.
func LoadSession(jar http.CookieJar, baseURL, path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("flow: read session: %w", err)
	}
	var s session
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("flow: decode session: %w", err)
	}
	if s.BaseURL != baseURL {
		return nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for name, value := range s.Cookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	jar.SetCookies(u, cookies)
	return nil
}

// SaveSession writes the jar's cookies for baseURL to path with owner-only permissions.
// With no cookies left (finalized or abandoned) the file is removed.
func SaveSession(jar http.CookieJar, baseURL, path string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return err
	}
	s := session{BaseURL: baseURL, Cookies: make(map[string]string)}
	for _, c := range jar.Cookies(u) {
		s.Cookies[c.Name] = c.Value
	}
	if len(s.Cookies) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
