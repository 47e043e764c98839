package kuro

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/HibiKier/wuthering-waves/internal/domain"
)

const (
	iosUserAgent     = "Mozilla/5.0 (iPhone; CPU iPhone OS 18_4_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko)  KuroGameBox/" + KuroVersion
	desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/136.0.0.0 Safari/537.36 Edg/136.0.0.0"

	devCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func randomDevCode(n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(devCodeAlphabet[rand.IntN(len(devCodeAlphabet))])
	}
	return b.String()
}

func randomIPv6() string {
	parts := make([]string, 8)
	for i := range parts {
		parts[i] = fmt.Sprintf("%04x", rand.IntN(0x10000))
	}
	return strings.Join(parts, ":")
}

// commonHeader is sent on every request. Each call gets a fresh device code
// and forwarded address.
func (c *Client) commonHeader() http.Header {
	h := http.Header{}
	h.Set("source", c.platform)
	if c.platform == "ios" {
		h.Set("User-Agent", iosUserAgent)
	} else {
		h.Set("User-Agent", desktopUserAgent)
	}
	h.Set("devCode", randomDevCode(32))
	h.Set("X-Forwarded-For", randomIPv6())
	h.Set("version", KuroVersion)
	return h
}

// sessionHeader authenticates a request with a session credential.
func (c *Client) sessionHeader(cred domain.Credential) http.Header {
	h := c.commonHeader()
	h.Set("token", cred.SessionToken)
	if cred.DeviceID != "" {
		h.Set("did", cred.DeviceID)
	}
	if cred.AccessToken != "" {
		h.Set("b-at", cred.AccessToken)
	}
	return h
}
