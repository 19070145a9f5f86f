package auth

import "time"

const (
	// DefaultSessionTTL is the lifetime embedded in session tokens
	DefaultSessionTTL = 24 * time.Hour
	// DefaultResetTTL is the lifetime embedded in password reset tokens
	DefaultResetTTL = 120 * time.Second
	// DefaultCookieName holds the session token in the browser
	DefaultCookieName = "usercookie"
	// DefaultCookieMaxAge is the browser side cookie lifetime in seconds.
	// It is not tied to DefaultSessionTTL.
	DefaultCookieMaxAge = 2500
	// DefaultContextKey is the fiber Locals key for the current user
	DefaultContextKey = "user"
)

// Options is the stock Config implementation
type Options struct {
	SigningKey   string        `koanf:"signing_key" json:"signing_key"`
	Issuer       string        `koanf:"issuer" json:"issuer"`
	SessionTTL   time.Duration `koanf:"session_ttl" json:"session_ttl"`
	ResetTTL     time.Duration `koanf:"reset_ttl" json:"reset_ttl"`
	CookieName   string        `koanf:"cookie_name" json:"cookie_name"`
	CookieMaxAge int           `koanf:"cookie_max_age" json:"cookie_max_age"`
	TokenLookup  string        `koanf:"token_lookup" json:"token_lookup"`
	AuthScheme   string        `koanf:"auth_scheme" json:"auth_scheme"`
	ContextKey   string        `koanf:"context_key" json:"context_key"`
	BaseURL      string        `koanf:"base_url" json:"base_url"`
}

var _ Config = Options{}

// DefaultOptions returns Options with every default filled in
// except the signing key.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Issuer == "" {
		o.Issuer = "campusportal"
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
	if o.ResetTTL <= 0 {
		o.ResetTTL = DefaultResetTTL
	}
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.CookieMaxAge <= 0 {
		o.CookieMaxAge = DefaultCookieMaxAge
	}
	if o.TokenLookup == "" {
		o.TokenLookup = "cookie:" + o.CookieName
	}
	if o.AuthScheme == "" {
		o.AuthScheme = "Bearer"
	}
	if o.ContextKey == "" {
		o.ContextKey = DefaultContextKey
	}
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:3000"
	}
	return o
}

func (o Options) GetSigningKey() string { return o.SigningKey }

func (o Options) GetIssuer() string { return o.withDefaults().Issuer }

func (o Options) GetSessionTTL() time.Duration { return o.withDefaults().SessionTTL }

func (o Options) GetResetTTL() time.Duration { return o.withDefaults().ResetTTL }

func (o Options) GetCookieName() string { return o.withDefaults().CookieName }

func (o Options) GetCookieMaxAge() int { return o.withDefaults().CookieMaxAge }

func (o Options) GetTokenLookup() string { return o.withDefaults().TokenLookup }

func (o Options) GetAuthScheme() string { return o.withDefaults().AuthScheme }

func (o Options) GetContextKey() string { return o.withDefaults().ContextKey }

func (o Options) GetBaseURL() string { return o.withDefaults().BaseURL }
