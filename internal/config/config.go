package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config is the immutable process configuration. It is built once by Load and
// handed to every component that needs part of it.
type Config interface {
	EnvConfig
	OIDCConfig
	SessionConfig
	SecurityConfig
	CookieConfig
	CorsConfig
	RedisConfig
	DownstreamConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetBaseURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
}

type DownstreamConfig interface {
	GetDownstreamAPIURL() string
}

type mainConfig struct {
	EnvVars
	OIDC
	Session
	Security
	Cookies
	Cors
	Redis
	Downstream
}

// Load reads an optional .env file followed by the process environment and
// returns a validated configuration.
func Load() (Config, error) {
	envFile := GetEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("[config.Load] reading %s: %w", envFile, err)
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	env := loadEnvVars()
	oidcCfg, err := loadOIDC(env.BaseURL)
	collect(err)
	session, err := loadSession()
	collect(err)
	security, err := loadSecurity()
	collect(err)
	cookies, err := loadCookies(env.Env)
	collect(err)
	redisCfg, err := loadRedis()
	collect(err)

	if len(errs) > 0 {
		return nil, fmt.Errorf("[config.Load] invalid configuration: %w", errors.Join(errs...))
	}

	return mainConfig{
		EnvVars:    env,
		OIDC:       oidcCfg,
		Session:    session,
		Security:   security,
		Cookies:    cookies,
		Cors:       loadCors(),
		Redis:      redisCfg,
		Downstream: Downstream{APIURL: GetEnv("DOWNSTREAM_API_URL", "")},
	}, nil
}
