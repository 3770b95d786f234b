// Package deliver posts job outcomes to tenant callback URLs. Every
// request body is signed with the tenant secret resolved at send time,
// so a revocation between job submission and completion suppresses the
// delivery.
package deliver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/getherald/herald/internal/model"
	"github.com/getherald/herald/internal/secrets"
	"github.com/getherald/herald/internal/sign"
)

// Sender delivers one callback payload. The production implementation
// posts exactly once; wrap it to add retry policies.
type Sender interface {
	Send(ctx context.Context, callbackURL string, tenantID string, payload model.CallbackPayload) error
}

type Deliverer struct {
	secrets secrets.Store
	client  *http.Client
}

func New(store secrets.Store, timeout time.Duration) *Deliverer {
	return &Deliverer{
		secrets: store,
		client:  &http.Client{Timeout: timeout},
	}
}

// ValidateURL rejects callback URLs without an http or https scheme or
// without a host.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("callback url %q: scheme must be http or https", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("callback url %q: missing host", raw)
	}
	return nil
}

// Send marshals the payload once and signs the exact bytes it
// transmits. A tenant with no secret on file yields
// model.ErrUnknownTenant before anything is sent.
func (d *Deliverer) Send(ctx context.Context, callbackURL string, tenantID string, payload model.CallbackPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	secret, err := d.secrets.Resolve(ctx, tenantID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(sign.Header, sign.Sign(body, secret.Secret))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, err := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if err != nil {
			return err
		}
		return fmt.Errorf("callback returned status %d: %s", resp.StatusCode, string(detail))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.DebugContext(ctx, "callback delivered",
		slog.String("url", callbackURL),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)))
	return nil
}

// Suppressed reports whether a delivery error means the callback was
// intentionally not sent rather than attempted and failed.
func Suppressed(err error) bool {
	return errors.Is(err, model.ErrUnknownTenant)
}
