package auth

import (
	"io"
	"mime/multipart"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

type AuthControllerRoutes struct {
	Register         string
	Login            string
	ValidUser        string
	Logout           string
	SendPasswordLink string
	ForgotPassword   string
	ChangePassword   string
}

type AuthController struct {
	Debug     bool
	Logger    Logger
	Config    Config
	Routes    *AuthControllerRoutes
	Register  *RegisterUserHandler
	Sessions  *SessionRegistry
	Resets    *PasswordResetFlow
	Protected fiber.Handler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerConfig(cfg Config) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Config = cfg
		return a
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Logger = normalizeLogger(logger)
		return a
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Debug = debug
		return a
	}
}

func WithRegisterHandler(h *RegisterUserHandler) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Register = h
		return a
	}
}

func WithSessionRegistry(s *SessionRegistry) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Sessions = s
		return a
	}
}

func WithPasswordResetFlow(f *PasswordResetFlow) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Resets = f
		return a
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Config: DefaultOptions(),
		Routes: &AuthControllerRoutes{
			Register:         "/register",
			Login:            "/login",
			ValidUser:        "/validuser",
			Logout:           "/logout",
			SendPasswordLink: "/sendpasswordlink",
			ForgotPassword:   "/forgotpassword/:id/:token",
			ChangePassword:   "/:id/:token",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Sessions == nil {
		panic("Missing SessionRegistry in auth controller...")
	}

	if c.Register == nil {
		panic("Missing RegisterUserHandler in auth controller...")
	}

	if c.Resets == nil {
		panic("Missing PasswordResetFlow in auth controller...")
	}

	if c.Protected == nil {
		mcfg := MiddlewareConfigFrom(c.Config)
		mcfg.Logger = c.Logger
		c.Protected = NewMiddleware(c.Sessions, mcfg)
	}

	return c
}

// RegisterAuthRoutes mounts the auth endpoints on app
func RegisterAuthRoutes(app fiber.Router, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).Name("register.post")
	app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")
	app.Get(controller.Routes.ValidUser, controller.Protected, controller.ValidUser).Name("valid-user.get")
	app.Get(controller.Routes.Logout, controller.Protected, controller.LogOut).Name("sign-out.get")
	app.Post(controller.Routes.SendPasswordLink, controller.PasswordResetPost).Name("pwd-reset.post")
	app.Get(controller.Routes.ForgotPassword, controller.PasswordResetForm).Name("pwd-reset-do.get")
	// two wildcard segments, keep it last
	app.Post(controller.Routes.ChangePassword, controller.PasswordResetExecute).Name("pwd-reset-do.post")

	return controller
}

// RegistrationCreate accepts JSON or multipart bodies. Multipart
// requests may carry "photo" and "sign" files.
func (a *AuthController) RegistrationCreate(c *fiber.Ctx) error {
	payload := RegisterUserMessage{}
	if err := c.BodyParser(&payload); err != nil {
		return RespondError(c, a.Logger, codedError(CodeInvalidFields, err, "could not parse registration body"))
	}

	if fh, err := c.FormFile("photo"); err == nil {
		payload.Photo = uploadFromHeader(fh)
	}
	if fh, err := c.FormFile("sign"); err == nil {
		payload.Sign = uploadFromHeader(fh)
	}

	if a.Debug {
		debugJSON(a.Logger, "registration payload", map[string]any{
			"email":  payload.Email,
			"course": payload.Course,
			"batch":  payload.Batch,
			"photo":  payload.Photo != nil,
			"sign":   payload.Sign != nil,
		})
	}

	var resp *RegisterUserResponse
	payload.OnResponse = func(r *RegisterUserResponse) {
		resp = r
	}

	if err := a.Register.Execute(c.UserContext(), payload); err != nil {
		return RespondError(c, a.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":    fiber.StatusCreated,
		"storeData": resp.User,
		"token":     resp.Token,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the request
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(c *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return RespondError(c, a.Logger, codedError(CodeInvalidFields, err, "could not parse login body"))
	}

	if missing := missingOf(map[string]string{"email": payload.Email, "password": payload.Password}); len(missing) > 0 {
		return RespondError(c, a.Logger, missingFieldsError(missing...))
	}

	if err := payload.Validate(); err != nil {
		return RespondError(c, a.Logger, codedError(CodeInvalidCredentials, nil, "invalid login payload", "details", err.Error()))
	}

	user, token, err := a.Sessions.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return RespondError(c, a.Logger, err)
	}

	SetSessionCookie(c, a.Config, token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": fiber.StatusCreated,
		"result": fiber.Map{
			"userValid": user,
			"token":     token,
		},
	})
}

func (a *AuthController) ValidUser(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	if !ok {
		return RespondError(c, a.Logger, unauthorizedError(nil, "reason", "no_user"))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":       fiber.StatusCreated,
		"ValidUserOne": user,
	})
}

func (a *AuthController) LogOut(c *fiber.Ctx) error {
	user, ok := CurrentUser(c)
	token, _ := CurrentToken(c)
	if !ok {
		return RespondError(c, a.Logger, unauthorizedError(nil, "reason", "no_user"))
	}

	if err := a.Sessions.Logout(c.UserContext(), user, token); err != nil {
		return respondErrorStatus(c, a.Logger, fiber.StatusUnauthorized, err)
	}

	ClearSessionCookie(c, a.Config)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": fiber.StatusCreated,
	})
}

type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

// PasswordResetPost answers 401 for every failure, the client can not
// tell an unknown email from a mail delivery problem.
func (a *AuthController) PasswordResetPost(c *fiber.Ctx) error {
	payload := PasswordResetRequestPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return respondErrorStatus(c, a.Logger, fiber.StatusUnauthorized, codedError(CodeInvalidFields, err, "could not parse reset body"))
	}

	if payload.Email == "" {
		return respondErrorStatus(c, a.Logger, fiber.StatusUnauthorized, missingFieldsError("email"))
	}

	if err := payload.Validate(); err != nil {
		return respondErrorStatus(c, a.Logger, fiber.StatusUnauthorized, notFoundError(nil, "email", payload.Email))
	}

	if err := a.Resets.RequestReset(c.UserContext(), payload.Email); err != nil {
		if IsCode(err, CodeInternal) {
			LogError(a.Logger, "password reset request failed", err)
		}
		return respondErrorStatus(c, a.Logger, fiber.StatusUnauthorized, notFoundError(nil, "email", payload.Email))
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":  fiber.StatusCreated,
		"message": "Email Sent Successfully",
	})
}

func (a *AuthController) PasswordResetForm(c *fiber.Ctx) error {
	user, err := a.Resets.VerifyReset(c.UserContext(), c.Params("id"), c.Params("token"))
	if err != nil {
		return RespondError(c, a.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":    fiber.StatusCreated,
		"validuser": user,
	})
}

type PasswordResetExecutePayload struct {
	Password string `form:"password" json:"password"`
}

func (a *AuthController) PasswordResetExecute(c *fiber.Ctx) error {
	payload := PasswordResetExecutePayload{}
	if err := c.BodyParser(&payload); err != nil {
		return RespondError(c, a.Logger, codedError(CodeInvalidFields, err, "could not parse password body"))
	}

	user, err := a.Resets.CompleteReset(c.UserContext(), c.Params("id"), c.Params("token"), payload.Password)
	if err != nil {
		return RespondError(c, a.Logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":         fiber.StatusCreated,
		"setnewuserpass": user,
	})
}

func uploadFromHeader(fh *multipart.FileHeader) *Upload {
	return &Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
