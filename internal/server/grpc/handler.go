package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	fields := req.GetFields()
	email := fields[FieldEmail].GetStringValue()
	password := fields[FieldPassword].GetStringValue()

	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	payload, err := s.sessions.Login(ctx, email, password)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return payloadToStruct(payload)
}

func (s *GRPCServer) Refresh(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {

	payload, err := s.sessions.Refresh(ctx, req.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return payloadToStruct(payload)
}

func (s *GRPCServer) SignOut(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {

	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	if err := s.sessions.SignOut(ctx, claims.UserID(), req.GetValue()); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &emptypb.Empty{}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error) {

	return wrapperspb.String("OK"), nil

}

// toStatus maps session errors to gRPC statuses. Internal details are logged,
// not returned.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrMissingToken):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidRefreshToken),
		errors.Is(err, common.ErrInvalidUser):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func payloadToStruct(p *models.AuthPayload) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{
		FieldAccessToken:   p.AccessToken,
		FieldAccessExpiry:  p.AccessExpiry.Format(time.RFC3339),
		FieldRefreshToken:  p.RefreshToken,
		FieldRefreshExpiry: float64(p.RefreshExpiry),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}
