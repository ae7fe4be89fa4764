package config

import "errors"

type OIDCConfig interface {
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetOIDCRedirectURI() string
	GetOIDCScopes() []string
}

type OIDC struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

var _ OIDCConfig = OIDC{}

func loadOIDC(baseURL string) (OIDC, error) {
	o := OIDC{
		Issuer:       GetEnv("OIDC_ISSUER", ""), // Must match discovery byte for byte
		ClientID:     GetEnv("OIDC_CLIENT_ID", ""),
		ClientSecret: GetEnv("OIDC_CLIENT_SECRET", ""),
		RedirectURI:  GetEnv("OIDC_REDIRECT_URI", baseURL+"/callback"),
		Scopes:       getList("OIDC_SCOPES", []string{"openid", "profile", "email", "offline_access"}),
	}
	if o.Issuer == "" {
		return o, errors.New("OIDC_ISSUER is required")
	}
	if o.ClientID == "" {
		return o, errors.New("OIDC_CLIENT_ID is required")
	}
	return o, nil
}

func (o OIDC) GetOIDCIssuer() string {
	return o.Issuer
}

func (o OIDC) GetOIDCClientID() string {
	return o.ClientID
}

func (o OIDC) GetOIDCClientSecret() string {
	return o.ClientSecret
}

func (o OIDC) GetOIDCRedirectURI() string {
	return o.RedirectURI
}

func (o OIDC) GetOIDCScopes() []string {
	return o.Scopes
}
