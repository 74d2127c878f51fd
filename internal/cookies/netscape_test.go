package cookies

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleCookieFile = `# Netscape HTTP Cookie File
# This is a generated file!  Do not edit.

.example.com	TRUE	/	TRUE	%d	SESSION	abc123
.example.com	TRUE	/	FALSE	%d	PREF	lang=en
.example.com	TRUE	/	TRUE	1	EXPIRED	gone
malformed line without tabs
`

func TestParseNetscape(t *testing.T) {
	future := time.Now().Add(24 * time.Hour).Unix()
	input := fmt.Sprintf(sampleCookieFile, future, future)

	cookies, err := ParseNetscape(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseNetscape: %v", err)
	}
	if len(cookies) != 3 {
		t.Fatalf("got %d cookies, want 3", len(cookies))
	}

	session := cookies[0]
	if session.Name != "SESSION" || session.Value != "abc123" {
		t.Errorf("cookie 0 = %s=%s", session.Name, session.Value)
	}
	if !session.Secure {
		t.Error("SESSION should be secure")
	}
	if session.Domain != ".example.com" {
		t.Errorf("domain = %q", session.Domain)
	}
	if cookies[1].Secure {
		t.Error("PREF should not be secure")
	}
}

func TestLoadJar(t *testing.T) {
	future := time.Now().Add(24 * time.Hour).Unix()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(fmt.Sprintf(sampleCookieFile, future, future)), 0o600); err != nil {
		t.Fatal(err)
	}

	jar, err := LoadJar(path)
	if err != nil {
		t.Fatalf("LoadJar: %v", err)
	}

	u, _ := url.Parse("https://example.com/")
	got := jar.Cookies(u)
	names := map[string]bool{}
	for _, c := range got {
		names[c.Name] = true
	}
	if !names["SESSION"] || !names["PREF"] {
		t.Errorf("jar cookies = %v, want SESSION and PREF", names)
	}
	if names["EXPIRED"] {
		t.Error("expired cookie survived loading")
	}
}

func TestLoadJar_MissingFile(t *testing.T) {
	if _, err := LoadJar(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("LoadJar succeeded on a missing file")
	}
}
