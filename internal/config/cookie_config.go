package config

import (
	"fmt"
	"net/http"
	"strings"
)

type CookieConfig interface {
	GetCookieSecure() bool
	GetCookieSameSite() http.SameSite
	GetCookieDomain() string
}

type Cookies struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

var _ CookieConfig = Cookies{}

func loadCookies(env string) (Cookies, error) {
	// Local development usually runs over plain http
	secure, err := getBool("COOKIE_SECURE", env != "DEV")
	if err != nil {
		return Cookies{}, err
	}
	c := Cookies{
		Secure: secure,
		Domain: GetEnv("COOKIE_DOMAIN", ""),
	}
	switch strings.ToLower(GetEnv("COOKIE_SAMESITE", "lax")) {
	case "lax":
		c.SameSite = http.SameSiteLaxMode
	case "strict":
		c.SameSite = http.SameSiteStrictMode
	case "none":
		c.SameSite = http.SameSiteNoneMode
		if !c.Secure {
			return c, fmt.Errorf("COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
		}
	default:
		return c, fmt.Errorf("COOKIE_SAMESITE: unsupported value %q", GetEnv("COOKIE_SAMESITE", ""))
	}
	return c, nil
}

func (c Cookies) GetCookieSecure() bool {
	return c.Secure
}

func (c Cookies) GetCookieSameSite() http.SameSite {
	return c.SameSite
}

func (c Cookies) GetCookieDomain() string {
	return c.Domain
}
