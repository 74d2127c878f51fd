// Package cookies loads browser-exported cookies so authenticated sessions
// carry over into stream requests.
package cookies

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ParseNetscape parses the Netscape cookies.txt format:
// domain flag path secure expiration name value, tab-separated.
func ParseNetscape(r io.Reader) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}

		expiresUnix, _ := strconv.ParseInt(parts[4], 10, 64)
		cookie := &http.Cookie{
			Domain: parts[0],
			Path:   parts[2],
			Secure: strings.EqualFold(parts[3], "TRUE"),
			Name:   parts[5],
			Value:  parts[6],
		}
		if expiresUnix > 0 {
			cookie.Expires = time.Unix(expiresUnix, 0)
		}
		cookies = append(cookies, cookie)
	}

	return cookies, scanner.Err()
}

// LoadJar reads a cookies.txt file into a jar ready to hand to an HTTP
// client. Expired cookies are dropped at load time.
func LoadJar(path string) (http.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cookie file: %w", err)
	}
	defer f.Close()

	parsed, err := ParseNetscape(f)
	if err != nil {
		return nil, fmt.Errorf("parse cookie file: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	byDomain := make(map[string][]*http.Cookie)
	for _, c := range parsed {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		domain := strings.TrimPrefix(c.Domain, ".")
		byDomain[domain] = append(byDomain[domain], c)
	}
	for domain, domainCookies := range byDomain {
		u := &url.URL{Scheme: "https", Host: domain}
		jar.SetCookies(u, domainCookies)
	}
	return jar, nil
}
