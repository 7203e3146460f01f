package provision

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	validation "github.com/go-ozzo/ozzo-validation"
	authflow "github.com/goliatone/go-auth-flow"
	"github.com/google/uuid"
)

// DefaultPath is where the sign-up endpoint is mounted.
const DefaultPath = "/api/auth/sign-up"

// Handler exposes the privileged sign-up endpoint.
type Handler struct {
	admin    AdminClient
	audit    *authflow.AuditLogger
	profiles authflow.Profiles
	logger   authflow.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithAudit records every terminal attempt in user_signups.
func WithAudit(audit *authflow.AuditLogger) HandlerOption {
	return func(h *Handler) {
		h.audit = audit
	}
}

// WithProfiles seeds the profile row for newly created accounts.
func WithProfiles(profiles authflow.Profiles) HandlerOption {
	return func(h *Handler) {
		h.profiles = profiles
	}
}

// WithLogger sets the handler logger.
func WithLogger(logger authflow.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler returns a Handler creating accounts through admin.
func NewHandler(admin AdminClient, opts ...HandlerOption) *Handler {
	h := &Handler{admin: admin, logger: authflow.DiscardLogger()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the endpoint on router.
func (h *Handler) Register(router fiber.Router) {
	router.Post(DefaultPath, h.SignUp)
}

// SignUp creates a confirmed account. Replies 200 {ok,user_id}, 409 with
// code EMAIL_EXISTS when the email is taken, 400 for invalid input or a
// rejected create and 500 when no admin client is configured.
func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(SignUpResponse{
			Error: "Invalid request body",
			Code:  TextCodeInvalid,
		})
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.TrimSpace(req.Role)

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(SignUpResponse{
			Error: validationMessage(err),
			Code:  TextCodeInvalid,
		})
	}

	if h.admin == nil {
		h.logger.Error("sign-up endpoint has no admin client")
		return c.Status(fiber.StatusInternalServerError).JSON(SignUpResponse{
			Error: "Server not configured for sign-up.",
			Code:  TextCodeNotConfigured,
		})
	}

	ctx := requestContext(c)

	created, err := h.admin.CreateUser(ctx, NewUser{
		Email:    req.Email,
		Password: req.Password,
		Metadata: req.Metadata(),
	})
	if err != nil {
		if IsEmailExists(err) {
			h.logger.Info("sign-up rejected, email exists", "email", req.Email)
			h.recordAttempt(ctx, req, authflow.SignupExists, "", err.Error())
			return c.Status(fiber.StatusConflict).JSON(SignUpResponse{
				Error: ErrEmailExists.Message,
				Code:  TextCodeEmailExists,
			})
		}

		h.logger.Error("sign-up create user failed", "email", req.Email, "error", err)
		h.recordAttempt(ctx, req, authflow.SignupFailed, "", err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(SignUpResponse{
			Error: authflow.ErrorMessage(err),
			Code:  TextCodeFailed,
		})
	}

	userID := ""
	if created != nil {
		userID = created.ID
	}

	h.recordAttempt(ctx, req, authflow.SignupSuccess, userID, "")
	h.seedProfile(ctx, req, userID)

	h.logger.Info("account created", "email", req.Email, "user_id", userID)
	return c.Status(fiber.StatusOK).JSON(SignUpResponse{OK: true, UserID: userID})
}

func (h *Handler) recordAttempt(ctx context.Context, req SignUpRequest, status authflow.SignupStatus, userID, message string) {
	if h.audit == nil {
		return
	}

	entry := authflow.SignupAttemptEntry{
		Email:    req.Email,
		FullName: req.FullName,
		Role:     authflow.Role(req.Role),
		Status:   status,
		UserID:   userID,
		Error:    message,
	}
	if req.RFID != nil {
		entry.RFID = *req.RFID
	}

	h.audit.LogSignupAttempt(ctx, entry)
}

// seedProfile writes the profile row for a created account. Failures are
// logged only; the client reconciles a missing row on first load.
func (h *Handler) seedProfile(ctx context.Context, req SignUpRequest, userID string) {
	if h.profiles == nil || userID == "" {
		return
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		h.logger.Warn("profile not seeded, user id is not a uuid", "user_id", userID)
		return
	}

	role := authflow.RoleMiner
	if parsed, ok := authflow.ParseRole(req.Role); ok {
		role = parsed
	}

	profile := &authflow.Profile{
		ID:       id,
		Email:    req.Email,
		FullName: strings.TrimSpace(req.FullName),
		Role:     role,
	}
	if role == authflow.RoleMiner && req.RFID != nil && strings.TrimSpace(*req.RFID) != "" {
		rfid := strings.TrimSpace(*req.RFID)
		profile.RFID = &rfid
	}

	if err := h.profiles.Upsert(ctx, profile); err != nil {
		h.logger.Warn("profile not seeded", "user_id", userID, "error", err)
	}
}

func requestContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func validationMessage(err error) string {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for field, ferr := range verrs {
			if ferr == nil {
				continue
			}
			parts = append(parts, field+": "+ferr.Error())
		}
		if len(parts) > 0 {
			sort.Strings(parts)
			return strings.Join(parts, "; ")
		}
	}
	return err.Error()
}
