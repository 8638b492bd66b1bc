// Package transport talks to the relay over HTTP with basic authentication
// and maps its status codes onto the errs taxonomy.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/message"
	"relay_chat/internal/utils/log"
)

const contentType = "application/octet-stream"

// maxResponseSize matches the largest body the relay accepts.
const maxResponseSize = 16 << 20

type (
	HTTPClient struct {
		base     string
		username string
		password string
		http     *http.Client
	}

	// statusErrors maps non-success status codes to errors for one
	// operation.
	statusErrors map[int]error
)

// Statuses every operation understands.
var commonStatus = statusErrors{
	http.StatusMethodNotAllowed:      errs.ErrMethodNotAllowed,
	http.StatusInternalServerError:   errs.ErrServerError,
	http.StatusUnauthorized:          errs.ErrNotAuthenticated,
	http.StatusPaymentRequired:       errs.ErrAccountExpired,
	http.StatusForbidden:             errs.ErrDeviceLimit,
	http.StatusRequestEntityTooLarge: errs.ErrBadRequest,
}

var (
	aliasCreateStatus = statusErrors{
		http.StatusBadRequest: errs.ErrIncorrectAlias,
		http.StatusConflict:   errs.ErrAliasExists,
	}
	aliasDeleteStatus = statusErrors{
		http.StatusBadRequest: errs.ErrIncorrectAlias,
		http.StatusNotFound:   errs.ErrAliasNotFound,
	}
	invitationStatus = statusErrors{
		http.StatusBadRequest: errs.ErrIncorrectAlias,
		http.StatusNotFound:   errs.ErrAliasNotFound,
	}
	sendMessageStatus = statusErrors{
		http.StatusBadRequest: errs.ErrBadRequest,
	}
	messageStatus = statusErrors{
		http.StatusBadRequest: errs.ErrInvalidMessageID,
		http.StatusNotFound:   errs.ErrMessageNotFound,
	}
)

// NewHTTPClient returns a client for host, which may be a bare host:port or
// a full base URL. A zero timeout leaves requests unbounded.
func NewHTTPClient(host, username, password string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		base:     baseURL(host),
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

func baseURL(host string) string {
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/")
}

func (c *HTTPClient) GetMessageHeaders(ctx context.Context) ([]model.MessageHeader, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/message/index", nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(body) == 0 {
		return nil, nil
	}
	return message.DecodeHeaders(bytes.NewReader(body))
}

func (c *HTTPClient) GetMessage(ctx context.Context, header model.MessageHeader) ([]byte, error) {
	path := "/message?id=" + strconv.FormatInt(header.ID, 10)
	body, _, err := c.do(ctx, http.MethodGet, path, nil, messageStatus)
	if err != nil {
		return nil, fmt.Errorf("message %d: %w", header.ID, err)
	}
	return body, nil
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, header model.MessageHeader) error {
	req, err := message.EncodeInt4(header.ID)
	if err != nil {
		return err
	}
	if _, _, err := c.do(ctx, http.MethodPost, "/message/delete", req, messageStatus); err != nil {
		return fmt.Errorf("delete message %d: %w", header.ID, err)
	}
	return nil
}

func (c *HTTPClient) SendInvitation(ctx context.Context, invitation []byte) error {
	_, _, err := c.do(ctx, http.MethodPost, "/contactlist", invitation, invitationStatus)
	return err
}

func (c *HTTPClient) SendMessage(ctx context.Context, msg []byte) error {
	_, _, err := c.do(ctx, http.MethodPost, "/message", msg, sendMessageStatus)
	return err
}

func (c *HTTPClient) CreateAlias(ctx context.Context, alias string) error {
	req, err := message.EncodeString1(alias)
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, http.MethodPost, "/alias/create", req, aliasCreateStatus)
	return err
}

func (c *HTTPClient) DeleteAlias(ctx context.Context, alias string) error {
	req, err := message.EncodeString1(alias)
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, http.MethodPost, "/alias/delete", req, aliasDeleteStatus)
	return err
}

func (c *HTTPClient) GetAliases(ctx context.Context) ([]string, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/alias", nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || len(body) == 0 {
		return nil, nil
	}
	return message.DecodeAliases(bytes.NewReader(body))
}

// do performs one round trip and returns the body of a 2xx response.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, statuses statusErrors) ([]byte, int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, 0, err
	}
	req.SetBasicAuth(c.username, c.password)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debug("relay request", zap.String("method", method), zap.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, normalize(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, resp.StatusCode, normalize(err)
	}
	if len(data) > maxResponseSize {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: response over %d bytes: %w", method, path, maxResponseSize, errs.ErrUnexpectedResponse)
	}
	if resp.StatusCode/100 == 2 {
		return data, resp.StatusCode, nil
	}

	log.Debug("relay response", zap.String("path", path), zap.Int("status", resp.StatusCode))
	if e, ok := statuses[resp.StatusCode]; ok {
		return nil, resp.StatusCode, e
	}
	if e, ok := commonStatus[resp.StatusCode]; ok {
		return nil, resp.StatusCode, e
	}
	return nil, resp.StatusCode, fmt.Errorf("%s %s: %s: %w", method, path, resp.Status, errs.ErrUnexpectedResponse)
}

// normalize folds timeouts and unreachable relays into errs.ErrNoConnection.
func normalize(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var dnsErr *net.DNSError
	var opErr *net.OpError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &dnsErr),
		errors.As(err, &opErr) && opErr.Op == "dial",
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%v: %w", err, errs.ErrNoConnection)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
