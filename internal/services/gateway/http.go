package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"menupay/internal/models"

	"github.com/gofiber/fiber/v2"
)

// jsonCall is one outbound JSON request made with fiber's fasthttp client.
type jsonCall struct {
	variant  models.ProcessorVariant
	url      string
	body     interface{}
	headers  map[string]string
	user     string
	password string
	timeout  time.Duration
}

// do posts the call and decodes a 2xx answer into out. The effective timeout
// is the smaller of the adapter timeout and the context deadline.
func (c jsonCall) do(ctx context.Context, out interface{}) error {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return transportError(c.variant, context.DeadlineExceeded)
		}
		if timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(c.url)
	agent.JSON(c.body)
	for k, v := range c.headers {
		agent.Set(k, v)
	}
	if c.user != "" {
		agent.BasicAuth(c.user, c.password)
	}
	if timeout > 0 {
		agent.Timeout(timeout)
	}
	if err := agent.Parse(); err != nil {
		return &Error{Variant: c.variant, Kind: KindInvalidRequest, Message: err.Error(), Err: err}
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return transportError(c.variant, errs[0])
	}
	if status < 200 || status >= 300 {
		var problem struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Error   struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &problem)
		code, msg := problem.Code, problem.Message
		if problem.Error.Code != "" {
			code, msg = problem.Error.Code, problem.Error.Description
		}
		return statusError(c.variant, status, code, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Variant: c.variant, Kind: KindProvider, StatusCode: status, Message: fmt.Sprintf("undecodable response: %v", err), Err: err}
	}
	return nil
}
