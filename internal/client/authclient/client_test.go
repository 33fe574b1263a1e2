package authclient

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	gs "github.com/dmitrijs2005/authsession/internal/server/grpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// fakeService issues numbered token pairs and expires the first access
// token when expireFirst is set.
type fakeService struct {
	mu          sync.Mutex
	n           int
	expireFirst bool
	live        map[string]bool
	signedOut   []string
	lastAccess  string
}

func (f *fakeService) issue() (*structpb.Struct, error) {
	f.n++
	refresh := "refresh-" + string(rune('0'+f.n))
	f.live[refresh] = true
	return structpb.NewStruct(map[string]any{
		gs.FieldAccessToken:   "access-" + string(rune('0'+f.n)),
		gs.FieldAccessExpiry:  time.Now().Add(time.Minute).UTC().Format(time.RFC3339),
		gs.FieldRefreshToken:  refresh,
		gs.FieldRefreshExpiry: float64(time.Now().Add(time.Hour).Unix()),
	})
}

func (f *fakeService) Login(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.GetFields()[gs.FieldPassword].GetStringValue() != "secret" {
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidCredentials.Error())
	}
	return f.issue()
}

func (f *fakeService) Refresh(_ context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[req.GetValue()] {
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidRefreshToken.Error())
	}
	delete(f.live, req.GetValue())
	return f.issue()
}

func (f *fakeService) SignOut(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	md, _ := metadata.FromIncomingContext(ctx)
	var access string
	if v := md.Get(common.AccessTokenHeaderName); len(v) > 0 {
		access = v[0]
	}
	f.lastAccess = access
	if f.expireFirst && access == "access-1" {
		return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}
	if !f.live[req.GetValue()] {
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidRefreshToken.Error())
	}
	delete(f.live, req.GetValue())
	f.signedOut = append(f.signedOut, req.GetValue())
	return &emptypb.Empty{}, nil
}

func (f *fakeService) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("OK"), nil
}

func newTestClient(t *testing.T, svc *fakeService) *GRPCClient {
	t.Helper()
	svc.live = map[string]bool{}

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	gs.RegisterSessionServiceServer(srv, svc)
	go func() { _ = srv.Serve(lis) }()

	c, err := NewClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})
	return c
}

func TestClient_LoginRefreshSignOut(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, svc)
	ctx := context.Background()

	s, err := c.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "access-1", s.AccessToken)
	assert.Equal(t, "refresh-1", s.RefreshToken)
	assert.True(t, s.RefreshExpiry.After(time.Now()))

	s, err = c.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", s.RefreshToken)
	assert.Equal(t, s, c.Session())

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, []string{"refresh-2"}, svc.signedOut)
	assert.Equal(t, "access-2", svc.lastAccess)
	assert.Equal(t, Session{}, c.Session())

	_, err = c.Refresh(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestClient_LoginRejected(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, Session{}, c.Session())
}

func TestClient_SignOutRefreshesExpiredAccessToken(t *testing.T) {
	svc := &fakeService{expireFirst: true}
	c := newTestClient(t, svc)
	ctx := context.Background()

	_, err := c.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, c.SignOut(ctx))
	assert.Equal(t, []string{"refresh-2"}, svc.signedOut)
	assert.Equal(t, "access-2", svc.lastAccess)
}

func TestClient_SignOutWithoutSession(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	assert.ErrorIs(t, c.SignOut(context.Background()), ErrNotLoggedIn)
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, &fakeService{})

	assert.NoError(t, c.Ping(context.Background()))
}

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.Unauthenticated, ErrUnauthorized},
		{codes.PermissionDenied, ErrUnauthorized},
		{codes.InvalidArgument, ErrInvalidRequest},
		{codes.Unavailable, ErrUnavailable},
		{codes.DeadlineExceeded, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.ErrorIs(t, c.mapError(status.Error(tt.code, "x")), tt.want)
		})
	}

	assert.NoError(t, c.mapError(nil))
	assert.Error(t, c.mapError(status.Error(codes.Internal, "boom")))
}
