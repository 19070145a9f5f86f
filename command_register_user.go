package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
)

// Upload is a file received with a registration form
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type RegisterUserMessage struct {
	FirstName       string `json:"fname" form:"fname"`
	LastName        string `json:"lname" form:"lname"`
	Email           string `json:"email" form:"email"`
	Phone           string `json:"phone" form:"phone"`
	DOB             string `json:"dob" form:"dob"`
	Course          string `json:"course" form:"course"`
	Batch           string `json:"batch" form:"batch"`
	Gender          string `json:"gender" form:"gender"`
	Nationality     string `json:"nationality" form:"nationality"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"cpassword" form:"cpassword"`

	// PhotoURL and SignURL are used as given when no upload is attached.
	PhotoURL string  `json:"photo,omitempty" form:"-"`
	SignURL  string  `json:"sign,omitempty" form:"-"`
	Photo    *Upload `json:"-" form:"-"`
	Sign     *Upload `json:"-" form:"-"`

	UseHashid  bool                        `json:"-" form:"-"`
	OnResponse func(*RegisterUserResponse) `json:"-" form:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

func (e RegisterUserMessage) missingFields() []string {
	return missingOf(map[string]string{
		"fname":       strings.TrimSpace(e.FirstName),
		"lname":       strings.TrimSpace(e.LastName),
		"email":       strings.TrimSpace(e.Email),
		"phone":       strings.TrimSpace(e.Phone),
		"dob":         strings.TrimSpace(e.DOB),
		"course":      strings.TrimSpace(e.Course),
		"batch":       strings.TrimSpace(e.Batch),
		"gender":      strings.TrimSpace(e.Gender),
		"nationality": strings.TrimSpace(e.Nationality),
		"password":    e.Password,
		"cpassword":   e.ConfirmPassword,
	})
}

// Validate checks formats, presence is checked separately. Phone
// numbers are only checked when phoneRegion is set.
func (e RegisterUserMessage) Validate(phoneRegion string) error {
	var phoneRules []validation.Rule
	if phoneRegion != "" {
		phoneRules = append(phoneRules, validation.By(ValidatePhone(phoneRegion)))
	}

	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Length(1, 200)),
		validation.Field(&e.LastName, validation.Length(1, 200)),
		validation.Field(&e.Email, validation.Length(3, 254), is.Email),
		validation.Field(&e.Phone, phoneRules...),
		validation.Field(&e.DOB, validation.Date(DOBLayout)),
		validation.Field(&e.Course, validation.Length(1, 200)),
		validation.Field(&e.Batch, validation.Length(1, 100)),
		validation.Field(&e.Gender, validation.Length(1, 50)),
		validation.Field(&e.Nationality, validation.Length(1, 100)),
	)
}

type RegisterUserResponse struct {
	User *User
	// Token is a session token that is not listed on the user, see
	// SessionRegistry.Issue.
	Token string
}

type RegisterUserHandler struct {
	repo        RepositoryManager
	sessions    *SessionRegistry
	files       FileStore
	hasher      PasswordHasher
	phoneRegion string
	logger      Logger
	activity    ActivitySink
}

func NewRegisterUserHandler(repo RepositoryManager, sessions *SessionRegistry) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		sessions: sessions,
		hasher:   BcryptHasher{},
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *RegisterUserHandler) WithFileStore(files FileStore) *RegisterUserHandler {
	h.files = files
	return h
}

func (h *RegisterUserHandler) WithHasher(hasher PasswordHasher) *RegisterUserHandler {
	h.hasher = normalizeHasher(hasher)
	return h
}

// WithPhoneValidation requires phone numbers to be valid and stores
// them in E.164. Numbers without a country code are read in region.
// An empty region keeps phone numbers as given.
func (h *RegisterUserHandler) WithPhoneValidation(region string) *RegisterUserHandler {
	h.phoneRegion = strings.TrimSpace(region)
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// Execute creates the account. Checks run in this order: required
// fields, email uniqueness, password confirmation, field formats.
func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return internalError(ctx.Err(), "context cancelled during user registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if missing := event.missingFields(); len(missing) > 0 {
		return missingFieldsError(missing...)
	}

	email := NormalizeEmail(event.Email)
	if _, err := h.repo.Users().GetByEmail(ctx, email); err == nil {
		return codedError(CodeDuplicateEmail, nil, "email already registered", "email", email)
	} else if !errors.Is(err, ErrUserNotFound) {
		return internalError(err, "failed to check email", "email", email)
	}

	if event.Password != event.ConfirmPassword {
		return codedError(CodePasswordMismatch, nil, "password confirmation does not match")
	}

	if err := checkPasswordLength(event.Password); err != nil {
		return err
	}

	if err := event.Validate(h.phoneRegion); err != nil {
		return invalidFieldsError(err)
	}

	phone := strings.TrimSpace(event.Phone)
	if h.phoneRegion != "" {
		normalized, err := NormalizePhone(phone, h.phoneRegion)
		if err != nil {
			return invalidFieldsError(validation.Errors{"phone": err})
		}
		phone = normalized
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return internalError(err, "failed to hash password")
	}

	user := &User{
		ID:           NewUserID(email, event.UseHashid),
		FirstName:    strings.TrimSpace(event.FirstName),
		LastName:     strings.TrimSpace(event.LastName),
		Email:        email,
		Phone:        phone,
		DOB:          strings.TrimSpace(event.DOB),
		Course:       strings.TrimSpace(event.Course),
		Batch:        strings.TrimSpace(event.Batch),
		Gender:       strings.TrimSpace(event.Gender),
		Nationality:  strings.TrimSpace(event.Nationality),
		PhotoURL:     event.PhotoURL,
		SignURL:      event.SignURL,
		PasswordHash: hash,
	}

	if user.PhotoURL, err = h.store(ctx, "images/photos", user.ID, event.Photo, user.PhotoURL); err != nil {
		return err
	}
	if user.SignURL, err = h.store(ctx, "images/signs", user.ID, event.Sign, user.SignURL); err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, func(ctx context.Context, users Users) error {
		if _, err := users.GetByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		}
		created, err := users.Create(ctx, user)
		if err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return codedError(CodeDuplicateEmail, nil, "email already registered", "email", email)
		}
		return internalError(err, "user registration transaction failed", "email", email)
	}

	token, err := h.sessions.Issue(ctx, user)
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRegister,
		UserID:    user.ID.String(),
		Email:     user.Email,
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user, Token: token})
	}
	return nil
}

// store uploads file under prefix and returns its URL. Without a file
// store the client file name is kept, without a file fallback is.
func (h *RegisterUserHandler) store(ctx context.Context, prefix string, id uuid.UUID, file *Upload, fallback string) (string, error) {
	if file == nil || file.Open == nil {
		return fallback, nil
	}
	if h.files == nil {
		name := path.Base(file.Filename)
		h.logger.Debug("registration upload %s kept by name, no file store configured", name)
		return name, nil
	}

	body, err := file.Open()
	if err != nil {
		return "", internalError(err, "failed to open upload", "file", file.Filename)
	}
	defer body.Close()

	key := fmt.Sprintf("%s/%s-%s", prefix, id, path.Base(file.Filename))
	url, err := h.files.Put(ctx, key, file.ContentType, body, file.Size)
	if err != nil {
		return "", internalError(err, "failed to store upload", "key", key)
	}
	return url, nil
}
