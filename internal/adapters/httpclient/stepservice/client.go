package stepservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Overland-East-Bay/policy-onboarding-api/internal/domain"
	"github.com/Overland-East-Bay/policy-onboarding-api/internal/ports/out/stepservice"
)

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// dateTimeKeys are server-assigned timestamps that some deployments send as bare dates.
var dateTimeKeys = []string{"contractStartDate", "contractEndDate"}

// intKeys and floatKeys are numeric fields a service may send as decimals ("5.0") or as
// numeric strings.
var (
	intKeys   = []string{"vehicleNumberOfPassengers", "vehicleCylinder", "vehicleFiscalHorsepower"}
	floatKeys = []string{"vehicleValue", "premium"}
)

// Client posts step payloads to the remote step service over HTTP.
type Client struct {
	httpClient *http.Client
	endpoint   string
	log        *slog.Logger
}

var _ stepservice.Service = (*Client)(nil)

func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		log:        logger,
	}
}

func (c *Client) SaveStep(ctx context.Context, payload []byte) (domain.Record, error) {
	step := gjson.GetBytes(payload, "currentStep").Int()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Record{}, fmt.Errorf("build step request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	dur := time.Since(start)
	if err != nil {
		c.log.ErrorContext(ctx, "step service request failed",
			slog.Int64("step", step),
			slog.Duration("duration", dur),
			slog.Any("err", err))
		return domain.Record{}, fmt.Errorf("step service unavailable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		c.log.ErrorContext(ctx, "step service response unreadable",
			slog.Int64("step", step),
			slog.Any("err", err))
		return domain.Record{}, fmt.Errorf("read step response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		re := ParseRemoteError(resp.StatusCode, body)
		c.log.WarnContext(ctx, "step service rejected step",
			slog.Int64("step", step),
			slog.Int("status_code", resp.StatusCode),
			slog.Duration("duration", dur),
			slog.String("message", re.Error()))
		return domain.Record{}, re
	}

	frag, err := DecodeFragment(body)
	if err != nil {
		c.log.ErrorContext(ctx, "step service response malformed",
			slog.Int64("step", step),
			slog.Any("err", err))
		return domain.Record{}, err
	}
	c.log.DebugContext(ctx, "step saved", slog.Int64("step", step), slog.Duration("duration", dur))
	return frag, nil
}

// DecodeFragment decodes a success body into a partial record. Keys the service did not
// send stay unspecified. An empty body is an empty fragment.
func DecodeFragment(body []byte) (domain.Record, error) {
	var frag domain.Record
	if len(bytes.TrimSpace(body)) == 0 {
		return frag, nil
	}
	if !gjson.ValidBytes(body) {
		return frag, errors.New("step response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return frag, errors.New("step response is not a JSON object")
	}

	if fixes := fragmentFixes(root); len(fixes) > 0 {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(body, &m); err != nil {
			return frag, fmt.Errorf("decode step response: %w", err)
		}
		for k, raw := range fixes {
			m[k] = json.RawMessage(raw)
		}
		b, err := json.Marshal(m)
		if err != nil {
			return frag, err
		}
		body = b
	}

	if err := json.Unmarshal(body, &frag); err != nil {
		return domain.Record{}, fmt.Errorf("decode step response: %w", err)
	}
	return frag, nil
}

// fragmentFixes returns replacement JSON for keys whose value is valid but not in the
// shape the record decodes: bare dates for timestamps, and numbers written as decimals
// or strings. Values that cannot be repaired are left for the decoder to reject.
func fragmentFixes(root gjson.Result) map[string]string {
	fixes := make(map[string]string)
	for _, k := range dateTimeKeys {
		if v := root.Get(k); v.Type == gjson.String && len(v.Str) == len("2006-01-02") {
			fixes[k] = `"` + v.Str + `T00:00:00Z"`
		}
	}
	for _, k := range intKeys {
		if raw, ok := wholeNumber(root.Get(k)); ok {
			fixes[k] = raw
		}
	}
	for _, k := range floatKeys {
		if v := root.Get(k); v.Type == gjson.String {
			if raw, ok := numericString(v.Str); ok {
				fixes[k] = raw
			}
		}
	}
	return fixes
}

// wholeNumber rewrites 5.0, 1.6e3 or "1600" as a plain integer. Integers already in
// plain form need no fix.
func wholeNumber(v gjson.Result) (string, bool) {
	var f float64
	switch v.Type {
	case gjson.Number:
		if _, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
			return "", false
		}
		f = v.Num
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return "null", true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", false
		}
		f = parsed
	default:
		return "", false
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

func numericString(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "null", true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// ParseRemoteError reads a structured error body:
//
//	{"pageErrors":[{"message":"..."}], "message":"...", "fieldErrors":{...}}
//
// optionally wrapped as {"body":{...}}. A non-JSON body yields an error carrying only
// the status.
func ParseRemoteError(status int, body []byte) *stepservice.RemoteError {
	re := &stepservice.RemoteError{Status: status}
	if !gjson.ValidBytes(body) {
		return re
	}
	root := gjson.ParseBytes(body)
	re.Structured = true
	if inner := root.Get("body"); inner.IsObject() {
		root = inner
	}

	root.Get("pageErrors").ForEach(func(_, v gjson.Result) bool {
		re.PageErrors = append(re.PageErrors, stepservice.PageError{Message: v.Get("message").String()})
		return true
	})
	re.Message = strings.TrimSpace(root.Get("message").String())
	if fe := root.Get("fieldErrors"); fe.Exists() {
		re.FieldErrors = json.RawMessage(fe.Raw)
	}
	return re
}
