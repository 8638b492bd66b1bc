package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
	"relay_chat/internal/protocol/message"
	"relay_chat/internal/utils/log"
)

var errBodyTooLarge = fmt.Errorf("request body over %d bytes: %w", maxBodySize, errs.ErrBadRequest)

var errorStatus = []struct {
	err    error
	status int
}{
	{errBodyTooLarge, http.StatusRequestEntityTooLarge},
	{errs.ErrNotAuthenticated, http.StatusUnauthorized},
	{errs.ErrAccountExpired, http.StatusPaymentRequired},
	{errs.ErrIncorrectAlias, http.StatusBadRequest},
	{errs.ErrBadRequest, http.StatusBadRequest},
	{errs.ErrInvalidMessageID, http.StatusBadRequest},
	{errs.ErrAliasExists, http.StatusConflict},
	{errs.ErrAliasNotFound, http.StatusNotFound},
	{errs.ErrMessageNotFound, http.StatusNotFound},
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			status = e.status
			break
		}
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="relay"`)
	}
	http.Error(w, http.StatusText(status), status)
}

func writeBody(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, errBodyTooLarge
	}
	return body, err
}

func validAlias(alias string) bool {
	if alias == "" {
		return false
	}
	for _, c := range alias {
		if c <= ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

func (s *HttpServer) GetAliases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aliases, err := s.storage.Aliases(r.Context(), userFrom(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if len(aliases) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		data, err := message.EncodeAliases(aliases)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeBody(w, data)
	}
}

func (s *HttpServer) CreateAlias() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alias, err := s.readAlias(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.storage.CreateAlias(r.Context(), userFrom(r.Context()), alias); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *HttpServer) DeleteAlias() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alias, err := s.readAlias(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.storage.DeleteAlias(r.Context(), userFrom(r.Context()), alias); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *HttpServer) readAlias(w http.ResponseWriter, r *http.Request) (string, error) {
	body, err := readBody(w, r)
	if err != nil {
		return "", err
	}
	alias, err := message.DecodeString1(body)
	if err != nil || !validAlias(alias) {
		return "", fmt.Errorf("alias %q: %w", alias, errs.ErrIncorrectAlias)
	}
	return alias, nil
}

// PostInvitation queues an invitation for the user named at its head.
func (s *HttpServer) PostInvitation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		receiver, err := message.InvitationReceiver(body)
		if err != nil || receiver == "" {
			writeError(w, r, fmt.Errorf("invitation receiver: %w", errs.ErrIncorrectAlias))
			return
		}
		user, err := s.accounts.GetByName(ctx, receiver)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if user == nil {
			writeError(w, r, fmt.Errorf("user %q: %w", receiver, errs.ErrAliasNotFound))
			return
		}
		id, err := s.storage.Enqueue(ctx, receiver, model.MessageTypeInvitation, body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		log.Debug("invitation queued", zap.String("to", receiver), zap.Int64("id", id))
		w.WriteHeader(http.StatusOK)
	}
}

// PostMessage queues a chat message for the owner of its receiver alias.
func (s *HttpServer) PostMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		alias, err := message.ChatReceiverAlias(body)
		if err != nil {
			writeError(w, r, fmt.Errorf("message alias: %w", errs.ErrBadRequest))
			return
		}
		owner, err := s.storage.AliasOwner(ctx, alias)
		if errors.Is(err, errs.ErrAliasNotFound) {
			writeError(w, r, fmt.Errorf("alias %q: %w", alias, errs.ErrBadRequest))
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := s.storage.Enqueue(ctx, owner, model.MessageTypeChat, body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		log.Debug("message queued", zap.Int64("id", id), zap.Int("size", len(body)))
		w.WriteHeader(http.StatusOK)
	}
}

func (s *HttpServer) GetMessageIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		headers, err := s.storage.Headers(r.Context(), userFrom(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if len(headers) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		data, err := message.EncodeHeaders(headers)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeBody(w, data)
	}
}

func (s *HttpServer) GetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, fmt.Errorf("id %q: %w", r.URL.Query().Get("id"), errs.ErrInvalidMessageID))
			return
		}
		data, err := s.storage.Message(r.Context(), userFrom(r.Context()), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeBody(w, data)
	}
}

func (s *HttpServer) DeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		id, err := message.DecodeInt4(body)
		if err != nil || id <= 0 {
			writeError(w, r, fmt.Errorf("delete id: %w", errs.ErrInvalidMessageID))
			return
		}
		if err := s.storage.DeleteMessage(r.Context(), userFrom(r.Context()), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
