package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const validateTimeout = 15 * time.Second

// Validator checks a subscription key against the remote service.
type Validator struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
}

func NewValidator(endpoint string, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = validateTimeout
	}
	return &Validator{endpoint: endpoint, timeout: timeout, http: cleanhttp.DefaultClient()}
}

// Validate reports whether the service accepts key. The body must be JSON
// true or an object with "valid": true.
func (v *Validator) Validate(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	u, err := url.Parse(v.endpoint)
	if err != nil {
		return false, fmt.Errorf("parse validate url: %w", err)
	}
	q := u.Query()
	q.Set("subscriptionKey", key)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("validate subscription key: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	body = bytes.TrimSpace(body)
	var flag bool
	if err := json.Unmarshal(body, &flag); err == nil {
		return flag, nil
	}
	var obj struct {
		Valid bool `json:"valid"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return false, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return obj.Valid, nil
}
