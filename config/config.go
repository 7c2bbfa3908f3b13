package config

import "time"

type Config struct {
	Web      Web
	Cors     Cors
	Auth     Auth
	DB       DB
	Email    Email
	Oauth    Oauth
	Checkout Checkout
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type Auth struct {
	ActivationRequired bool `conf:"default:false"`

	// Login attempts allowed per client per LoginInterval.
	LoginBurst    int           `conf:"default:10"`
	LoginInterval time.Duration `conf:"default:1s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:bookstore"`
	MaxIdleConns int    `conf:"default:2"`
	MaxOpenConns int    `conf:"default:25"`
	DisableTLS   bool   `conf:"default:true"`
}

type Email struct {
	Host          string
	Port          string
	Address       string
	Password      string `conf:"mask"`
	ActivationURL string
	RecoveryURL   string
	TokenTimeout  time.Duration `conf:"default:15m"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string
}

type Checkout struct {
	// MaxLineQuantity bounds the quantity accepted for a single cart line.
	MaxLineQuantity int `conf:"default:99"`
}
