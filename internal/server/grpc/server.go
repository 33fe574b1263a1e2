// Package grpc exposes the session manager as the authsession.v1
// SessionService gRPC service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"google.golang.org/grpc"
)

// Sessions is the session API served over gRPC.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*models.AuthPayload, error)
	Refresh(ctx context.Context, bearer string) (*models.AuthPayload, error)
	SignOut(ctx context.Context, userID, bearer string) error
}

// TokenParser verifies access tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

type GRPCServer struct {
	address  string
	sessions Sessions
	tokens   TokenParser
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, sessions Sessions, tokens TokenParser) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		sessions: sessions,
		tokens:   tokens,
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	RegisterSessionServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
