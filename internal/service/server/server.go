// Package server is a development relay: it stores aliases and queued
// messages for authenticated users and pushes notifications over a
// websocket. It never sees plaintext.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"relay_chat/internal/model"
	userRepo "relay_chat/internal/repository/user"
	"relay_chat/internal/utils/log"
)

type (
	// Accounts authenticates relay users and resolves invitation
	// receivers.
	Accounts interface {
		Authenticate(ctx context.Context, name, password string) (*model.User, error)
		GetByName(ctx context.Context, name string) (*model.User, error)
	}

	HttpServer struct {
		accounts Accounts
		storage  Storage
	}
)

var _ Accounts = (*userRepo.UserRepo)(nil)

// maxBodySize bounds request bodies; messages carry at most an image.
const maxBodySize = 16 << 20

func NewHttpServer(accounts Accounts, storage Storage) *HttpServer {
	return &HttpServer{
		accounts: accounts,
		storage:  storage,
	}
}

func (s *HttpServer) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, accessLog, s.basicAuth)

	r.HandleFunc("/alias", s.GetAliases()).Methods(http.MethodGet)
	r.HandleFunc("/alias/create", s.CreateAlias()).Methods(http.MethodPost)
	r.HandleFunc("/alias/delete", s.DeleteAlias()).Methods(http.MethodPost)
	r.HandleFunc("/contactlist", s.PostInvitation()).Methods(http.MethodPost)
	r.HandleFunc("/message/index", s.GetMessageIndex()).Methods(http.MethodGet)
	r.HandleFunc("/message/delete", s.DeleteMessage()).Methods(http.MethodPost)
	r.HandleFunc("/message", s.GetMessage()).Methods(http.MethodGet)
	r.HandleFunc("/message", s.PostMessage()).Methods(http.MethodPost)
	r.HandleFunc("/notify", s.HandleNotifyWS()).Methods(http.MethodGet)
	return r
}

// Run serves on addr until ctx ends.
func (s *HttpServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("relay listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
