package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"stealthtrack/internal/constants"
	"stealthtrack/internal/logger"
)

// Dispatcher performs the webhook POST. One attempt per call: retry
// policy, if ever wanted, belongs to a layer above this one.
type Dispatcher struct {
	client  *http.Client
	timeout time.Duration
	bodyCap int
	log     logger.Logger
}

func NewDispatcher(timeout time.Duration, bodyCap int, log logger.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = constants.DefaultWebhookTimeout
	}
	if bodyCap <= 0 {
		bodyCap = constants.DefaultBodyCapBytes
	}
	return &Dispatcher{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		bodyCap: bodyCap,
		log:     log,
	}
}

// Dispatch POSTs the payload as JSON and reports what happened. A
// received non-2xx is a semantic failure (status recorded, no error); a
// transport failure carries an error and no status. DurationMs is
// always populated.
func (d *Dispatcher) Dispatch(ctx context.Context, url string, payload map[string]string) DispatchResult {
	start := time.Now()
	result := func(r DispatchResult) DispatchResult {
		r.DurationMs = time.Since(start).Milliseconds()
		return r
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return result(DispatchResult{Error: strPtr("failed to encode payload: " + err.Error())})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result(DispatchResult{Error: strPtr("invalid request: " + err.Error())})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return result(DispatchResult{Error: strPtr("timeout")})
		}
		return result(DispatchResult{Error: strPtr(err.Error())})
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	r := DispatchResult{
		HTTPStatus: &status,
		Success:    status >= constants.HTTPStatusOKMin && status < constants.HTTPStatusOKMax,
	}

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, int64(d.bodyCap)))
	if readErr != nil {
		d.log.WarnwCtx(ctx, "Failed to read webhook response body", "error", readErr)
	} else if len(respBody) > 0 {
		r.ResponseBody = strPtr(string(respBody))
	}

	return result(r)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func strPtr(s string) *string { return &s }

func int64Ptr(i int64) *int64 { return &i }
