// Package authclient is a gRPC client for the session service. It keeps the
// current token pair and refreshes an expired access token once per call.
package authclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	gs "github.com/dmitrijs2005/authsession/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const pingTimeout = 5 * time.Second

// Session is the token pair returned by Login and Refresh.
type Session struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
}

type GRPCClient struct {
	conn *grpc.ClientConn

	mu      sync.Mutex
	session Session
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

// NewClient connects to endpointURL. Extra options are appended to the
// defaults (insecure transport, token interceptor).
func NewClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if method != gs.SignOutMethod {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, c.Session().AccessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	// access token expired, rotate and retry once
	if _, rerr := c.Refresh(ctx); rerr != nil {
		return err
	}

	// the presented refresh token was rotated as well
	session := c.Session()
	req = wrapperspb.String(session.RefreshToken)
	return invoker(withAccessToken(ctx, session.AccessToken), method, req, reply, cc, opts...)
}

// Session returns the current token pair.
func (c *GRPCClient) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetSession replaces the current token pair, e.g. one restored from disk.
func (c *GRPCClient) SetSession(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *GRPCClient) Login(ctx context.Context, email, password string) (Session, error) {

	req, err := structpb.NewStruct(map[string]any{
		gs.FieldEmail:    email,
		gs.FieldPassword: password,
	})
	if err != nil {
		return Session{}, err
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, gs.LoginMethod, req, resp); err != nil {
		return Session{}, c.mapError(err)
	}

	return c.store(resp)
}

// Refresh rotates the current refresh token.
func (c *GRPCClient) Refresh(ctx context.Context) (Session, error) {

	bearer := c.Session().RefreshToken
	if bearer == "" {
		return Session{}, ErrNotLoggedIn
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, gs.RefreshMethod, wrapperspb.String(bearer), resp); err != nil {
		return Session{}, c.mapError(err)
	}

	return c.store(resp)
}

// SignOut ends the current session and forgets the token pair.
func (c *GRPCClient) SignOut(ctx context.Context) error {

	s := c.Session()
	if s.RefreshToken == "" {
		return ErrNotLoggedIn
	}

	if err := c.conn.Invoke(ctx, gs.SignOutMethod, wrapperspb.String(s.RefreshToken), new(emptypb.Empty)); err != nil {
		return c.mapError(err)
	}

	c.SetSession(Session{})
	return nil
}

func (c *GRPCClient) Ping(ctx context.Context) error {

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	resp := new(wrapperspb.StringValue)
	if err := c.conn.Invoke(ctx, gs.PingMethod, &emptypb.Empty{}, resp); err != nil {
		return c.mapError(err)
	}

	if resp.GetValue() != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) store(resp *structpb.Struct) (Session, error) {
	fields := resp.GetFields()

	accessExpiry, err := time.Parse(time.RFC3339, fields[gs.FieldAccessExpiry].GetStringValue())
	if err != nil {
		return Session{}, fmt.Errorf("malformed session response: %w", err)
	}

	s := Session{
		AccessToken:   fields[gs.FieldAccessToken].GetStringValue(),
		AccessExpiry:  accessExpiry,
		RefreshToken:  fields[gs.FieldRefreshToken].GetStringValue(),
		RefreshExpiry: time.Unix(int64(fields[gs.FieldRefreshExpiry].GetNumberValue()), 0),
	}
	c.SetSession(s)
	return s, nil
}

func (c *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.InvalidArgument:
		return ErrInvalidRequest
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
