package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var errTokenMissing = errors.New("missing or malformed session token")

// SessionResolver turns a raw session token into its owner
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*User, error)
}

// MiddlewareConfig configures the session middleware
type MiddlewareConfig struct {
	// TokenLookup is a comma separated list of "source:name" pairs,
	// e.g. "cookie:usercookie,header:Authorization".
	TokenLookup string
	AuthScheme  string
	// ContextKey is the fiber Locals key the user is stored under. The
	// token is stored under ContextKey + "_token".
	ContextKey     string
	ErrorHandler   fiber.ErrorHandler
	SuccessHandler fiber.Handler
	Logger         Logger
}

// MiddlewareConfigFrom builds a MiddlewareConfig out of cfg
func MiddlewareConfigFrom(cfg Config) MiddlewareConfig {
	return MiddlewareConfig{
		TokenLookup: cfg.GetTokenLookup(),
		AuthScheme:  cfg.GetAuthScheme(),
		ContextKey:  cfg.GetContextKey(),
	}
}

func (cfg MiddlewareConfig) withDefaults() MiddlewareConfig {
	if cfg.TokenLookup == "" {
		cfg.TokenLookup = "cookie:" + DefaultCookieName
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  fiber.StatusUnauthorized,
				"error":   CodeUnauthorized,
				"message": "Unauthorized no token provided",
			})
		}
	}
	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	cfg.Logger = normalizeLogger(cfg.Logger)
	return cfg
}

// NewMiddleware protects routes with a live session. The resolved user
// and the raw token are attached to the request, see CurrentUser and
// CurrentToken.
func NewMiddleware(resolver SessionResolver, config ...MiddlewareConfig) fiber.Handler {
	var cfg MiddlewareConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	cfg = cfg.withDefaults()

	if resolver == nil {
		panic("AUTH: session middleware configuration: resolver is required.")
	}

	extractors := GetExtractors(cfg.TokenLookup, cfg.AuthScheme)

	return func(c *fiber.Ctx) error {
		token, err := extractToken(c, extractors)
		if err != nil {
			return cfg.ErrorHandler(c, unauthorizedError(err, "reason", "missing_token"))
		}

		user, err := resolver.Resolve(c.UserContext(), token)
		if err != nil {
			cfg.Logger.Debug("session middleware rejected request to %s: %v", c.Path(), err)
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, user)
		c.Locals(cfg.ContextKey+"_token", token)
		c.SetUserContext(WithTokenContext(WithContext(c.UserContext(), user), token))

		return cfg.SuccessHandler(c)
	}
}

// TokenExtractor pulls a raw token out of a request
type TokenExtractor func(c *fiber.Ctx) (string, error)

// GetExtractors parses a lookup such as
// "cookie:usercookie,header:Authorization,query:token"
func GetExtractors(tokenLookup string, authSchemes ...string) []TokenExtractor {
	extractors := make([]TokenExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 && authSchemes[0] != "" {
		authScheme = authSchemes[0]
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}
		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

func extractToken(c *fiber.Ctx, extractors []TokenExtractor) (string, error) {
	for _, extract := range extractors {
		if token, err := extract(c); err == nil && token != "" {
			return token, nil
		}
	}
	return "", errTokenMissing
}

func tokenFromHeader(header, authScheme string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", errTokenMissing
	}
}

func tokenFromQuery(param string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", errTokenMissing
		}
		return token, nil
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", errTokenMissing
		}
		return token, nil
	}
}
