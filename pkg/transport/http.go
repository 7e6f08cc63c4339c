package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/toolgrid/toolgrid-go/pkg/auth"
	"github.com/toolgrid/toolgrid-go/pkg/errors"
	"github.com/toolgrid/toolgrid-go/pkg/logging"
	"github.com/toolgrid/toolgrid-go/pkg/protocol"
)

const defaultAPIKeyHeader = "X-API-Key"

// HTTPTransport binds the protocol to RPC-over-HTTP: a request maps to
// POST {base_url}/{method} with params as the JSON body and returns only
// after the reply is known; a notification maps to a fire-and-forget
// POST {base_url}/notify/{method}. The transport is stateless apart from the
// held client and auth configuration, and is not receive-capable.
type HTTPTransport struct {
	baseURL   string
	client    *http.Client
	logger    logging.Logger
	headers   map[string]string
	authCfg   *auth.Config
	validator auth.TokenValidator
}

// NewHTTPTransport creates an HTTP transport for the given base URL
func NewHTTPTransport(baseURL string, opts ...Option) (*HTTPTransport, error) {
	return newHTTPTransport(&HTTPConfig{BaseURL: baseURL}, newOptions(opts))
}

func newHTTPTransport(config *HTTPConfig, o *options) (*HTTPTransport, error) {
	if config.BaseURL == "" {
		return nil, errors.ConfigError("http").WithDetail("base_url must not be empty")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, errors.ConfigError("http").WithDetail("invalid base_url: " + err.Error())
	}

	client := o.httpClient
	if client == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	t := &HTTPTransport{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		client:    client,
		logger:    o.logger.WithComponent("http_transport"),
		headers:   make(map[string]string),
		authCfg:   config.Auth,
		validator: o.validator,
	}

	// Basic, bearer, and API-key credentials become static headers here;
	// OAuth2 is resolved per request in authorize.
	if config.Auth != nil {
		switch config.Auth.Type {
		case auth.TypeBasic:
			user := config.Auth.Credentials["username"]
			pass := config.Auth.Credentials["password"]
			encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			t.headers["Authorization"] = "Basic " + encoded
		case auth.TypeBearer:
			t.headers["Authorization"] = "Bearer " + config.Auth.Credentials["token"]
		case auth.TypeAPIKey:
			header := config.Auth.Credentials["header"]
			if header == "" {
				header = defaultAPIKeyHeader
			}
			t.headers[header] = config.Auth.Credentials["api_key"]
		case auth.TypeNone, auth.TypeOAuth2, "":
			// Nothing static to set.
		}
	}

	return t, nil
}

// Send dispatches an envelope. Requests return the parsed terminal reply;
// notification delivery failures are logged and swallowed since notifications
// have no reply channel to report through.
func (t *HTTPTransport) Send(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error) {
	if err := protocol.Validate(env); err != nil {
		return nil, err
	}

	switch env.Type {
	case protocol.TypeRequest:
		return t.sendRequest(ctx, env.Request)
	case protocol.TypeNotification:
		t.sendNotification(ctx, env.Notification)
		return nil, nil
	default:
		return nil, errors.CapabilityError("http", "sending "+string(env.Type)+" envelopes")
	}
}

// sendRequest performs the POST and blocks until a reply is known
func (t *HTTPTransport) sendRequest(ctx context.Context, req *protocol.Request) (*protocol.Envelope, error) {
	endpoint := t.baseURL + "/" + req.Method

	body, status, err := t.post(ctx, endpoint, req.Params)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, errors.ServerError("http", status, string(body))
	}

	reply, err := protocol.Unmarshal(body)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// sendNotification performs a best-effort POST
func (t *HTTPTransport) sendNotification(ctx context.Context, notif *protocol.Notification) {
	endpoint := t.baseURL + "/notify/" + notif.Method

	body, status, err := t.post(ctx, endpoint, notif.Params)
	if err != nil {
		t.logger.Warn("notification delivery failed",
			logging.String("method", notif.Method),
			logging.ErrorField(err))
		return
	}
	if status < 200 || status >= 300 {
		t.logger.Warn("notification rejected",
			logging.String("method", notif.Method),
			logging.Int("status", status),
			logging.String("body", string(body)))
	}
}

// post performs one POST with auth headers applied
func (t *HTTPTransport) post(ctx context.Context, endpoint string, payload []byte) ([]byte, int, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, errors.ConnectionError("http", "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if err := t.authorize(ctx, httpReq); err != nil {
		return nil, 0, err
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, 0, errors.ConnectionError("http", "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.ConnectionLost("http", "read response body", err)
	}
	return body, resp.StatusCode, nil
}

// authorize resolves OAuth2 credentials per request. The stored token_id and
// user_id are looked up against the injected validator; the transport itself
// never issues tokens.
func (t *HTTPTransport) authorize(ctx context.Context, req *http.Request) error {
	if t.authCfg == nil || t.authCfg.Type != auth.TypeOAuth2 {
		return nil
	}
	if t.validator == nil {
		return errors.AuthorizationError("OAuth2 manager not configured")
	}

	tokenID := t.authCfg.Credentials["token_id"]
	userID := t.authCfg.Credentials["user_id"]
	if tokenID == "" || userID == "" {
		return errors.AuthorizationError("OAuth2 credentials missing token_id or user_id")
	}

	token, err := t.validator.ValidateToken(ctx, tokenID)
	if err != nil {
		if _, ok := errors.AsRuntimeError(err); ok {
			return err
		}
		return errors.AuthorizationError("token validation failed: " + err.Error())
	}
	if token.UserID != userID {
		return errors.AuthorizationError(
			fmt.Sprintf("token was issued to %s, not %s", token.UserID, userID))
	}

	req.Header.Set("Authorization", token.TokenType+" "+token.AccessToken)
	return nil
}

// Receive always fails: this transport is not receive-capable
func (t *HTTPTransport) Receive(ctx context.Context) (*protocol.Envelope, error) {
	return nil, errors.CapabilityError("http", "receive")
}

// IsConnected is a best-effort GET /health probe; any failure resolves to
// false rather than an error.
func (t *HTTPTransport) IsConnected() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Close releases idle connections held by the client
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
