package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultSignupPath is where the privileged account endpoint is mounted.
const DefaultSignupPath = "/api/auth/sign-up"

// HTTPAccountCreator calls the privileged account endpoint over HTTP.
type HTTPAccountCreator struct {
	endpoint string
	timeout  time.Duration
	logger   Logger
}

var _ AccountCreator = (*HTTPAccountCreator)(nil)

// NewHTTPAccountCreator returns a creator posting to endpoint.
func NewHTTPAccountCreator(endpoint string, timeout time.Duration) *HTTPAccountCreator {
	return &HTTPAccountCreator{
		endpoint: strings.TrimSpace(endpoint),
		timeout:  timeout,
		logger:   DiscardLogger(),
	}
}

// WithLogger sets the logger.
func (c *HTTPAccountCreator) WithLogger(logger Logger) *HTTPAccountCreator {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// CreateAccount posts req and decodes the reply. Transport failures are
// returned as errors; any HTTP reply becomes an AccountResponse.
func (c *HTTPAccountCreator) CreateAccount(ctx context.Context, req AccountRequest) (*AccountResponse, error) {
	if c.endpoint == "" {
		return nil, errors.New("account endpoint is not configured")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agent := fiber.Post(c.endpoint).
		JSON(req).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)

	if c.timeout > 0 {
		agent = agent.Timeout(c.timeout)
	}

	if info := ClientInfoFromContext(ctx); info.UserAgent != "" {
		agent = agent.UserAgent(info.UserAgent)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return decodeAccountResponse(code, body), nil
}

func decodeAccountResponse(code int, body []byte) *AccountResponse {
	resp := &AccountResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		resp = &AccountResponse{
			OK:    false,
			Error: UnexpectedResponseError,
			Code:  TextCodeUnexpectedResponse,
		}
	}
	resp.StatusCode = code
	return resp
}
