package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

// SetSessionCookie stores token in the session cookie. The cookie lives
// for cfg.GetCookieMaxAge seconds whatever the token expiry is.
func SetSessionCookie(c *fiber.Ctx, cfg Config, token string) {
	maxAge := cfg.GetCookieMaxAge()
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetCookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  time.Now().Add(time.Duration(maxAge) * time.Second),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteDisabled,
	})
}

// ClearSessionCookie expires the session cookie on the client
func ClearSessionCookie(c *fiber.Ctx, cfg Config) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetCookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteDisabled,
	})
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondError writes err using HTTPStatus and PublicMessage. Errors
// without a client facing code are logged.
func RespondError(c *fiber.Ctx, logger Logger, err error) error {
	return respondErrorStatus(c, logger, HTTPStatus(err), err)
}

func respondErrorStatus(c *fiber.Ctx, logger Logger, status int, err error) error {
	code := ErrorCode(err)
	if code == "" || code == CodeInternal {
		LogError(logger, "auth request failed", err)
		code = CodeInternal
	}

	resp := ErrorResponse{
		Status:  status,
		Error:   code,
		Message: PublicMessage(err),
	}
	return c.Status(status).JSON(resp)
}

func debugJSON(logger Logger, label string, v any) {
	normalizeLogger(logger).Debug("%s: %s", label, print.MaybePrettyJSON(v))
}
