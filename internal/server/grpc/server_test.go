package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/authsession/internal/common"
	"github.com/dmitrijs2005/authsession/internal/logging"
	"github.com/dmitrijs2005/authsession/internal/server/auth"
	"github.com/dmitrijs2005/authsession/internal/server/config"
	"github.com/dmitrijs2005/authsession/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authsession/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type testServer struct {
	conn   *grpc.ClientConn
	issuer *auth.AccessTokenIssuer
	users  *services.UserService
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PasswordHashCost = bcrypt.MinCost
	cfg.RefreshTokenHashMemoryKiB = 64

	repos := repomanager.NewMemoryManager()
	deps, issuer := services.NewDefaultDeps(repos, cfg, logging.Nop(), nil)
	sessions := services.NewSessionManager(deps, cfg.RefreshTokenTTL)

	srv := NewGRPCServer("bufnet", nopLogger{}, sessions, issuer)

	lis := bufconn.Listen(1024 * 1024)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})

	return &testServer{
		conn:   conn,
		issuer: issuer,
		users:  services.NewUserService(repos.Users(), auth.NewBcryptHasher(cfg.PasswordHashCost)),
	}
}

func (s *testServer) login(t *testing.T, email, password string) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{FieldEmail: email, FieldPassword: password})
	require.NoError(t, err)
	out := new(structpb.Struct)
	err = s.conn.Invoke(context.Background(), LoginMethod, req, out)
	return out, err
}

func (s *testServer) refresh(bearer string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	err := s.conn.Invoke(context.Background(), RefreshMethod, wrapperspb.String(bearer), out)
	return out, err
}

func (s *testServer) signOut(accessToken, bearer string) error {
	ctx := context.Background()
	if accessToken != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, accessToken)
	}
	return s.conn.Invoke(ctx, SignOutMethod, wrapperspb.String(bearer), new(emptypb.Empty))
}

func field(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func TestServer_LoginRefreshSignOut(t *testing.T) {
	s := startTestServer(t)
	_, err := s.users.Register(context.Background(), "alice@example.com", "secret", false)
	require.NoError(t, err)

	first, err := s.login(t, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, field(first, FieldAccessToken))
	assert.Len(t, field(first, FieldRefreshToken), 64)
	assert.NotZero(t, first.GetFields()[FieldRefreshExpiry].GetNumberValue())
	_, err = time.Parse(time.RFC3339, field(first, FieldAccessExpiry))
	require.NoError(t, err)

	second, err := s.refresh(field(first, FieldRefreshToken))
	require.NoError(t, err)
	assert.NotEqual(t, field(first, FieldRefreshToken), field(second, FieldRefreshToken))

	// rotated token is single use
	_, err = s.refresh(field(first, FieldRefreshToken))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	require.NoError(t, s.signOut(field(second, FieldAccessToken), field(second, FieldRefreshToken)))

	_, err = s.refresh(field(second, FieldRefreshToken))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_LoginErrors(t *testing.T) {
	s := startTestServer(t)
	_, err := s.users.Register(context.Background(), "bob@example.com", "secret", false)
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		code     codes.Code
	}{
		{"wrong password", "bob@example.com", "nope", codes.Unauthenticated},
		{"unknown user", "nobody@example.com", "secret", codes.Unauthenticated},
		{"empty email", "", "secret", codes.InvalidArgument},
		{"empty password", "bob@example.com", "", codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.login(t, tt.email, tt.password)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestServer_RefreshMissingToken(t *testing.T) {
	s := startTestServer(t)

	_, err := s.refresh("")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_SignOutRequiresAccessToken(t *testing.T) {
	s := startTestServer(t)
	_, err := s.users.Register(context.Background(), "carol@example.com", "secret", false)
	require.NoError(t, err)

	payload, err := s.login(t, "carol@example.com", "secret")
	require.NoError(t, err)
	bearer := field(payload, FieldRefreshToken)

	err = s.signOut("", bearer)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	err = s.signOut("not-a-jwt", bearer)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	// token is still usable after rejected sign outs
	_, err = s.refresh(bearer)
	require.NoError(t, err)
}

func TestServer_SignOutOtherUsersToken(t *testing.T) {
	s := startTestServer(t)
	ctx := context.Background()
	_, err := s.users.Register(ctx, "dave@example.com", "secret", false)
	require.NoError(t, err)
	_, err = s.users.Register(ctx, "erin@example.com", "secret", false)
	require.NoError(t, err)

	dave, err := s.login(t, "dave@example.com", "secret")
	require.NoError(t, err)
	erin, err := s.login(t, "erin@example.com", "secret")
	require.NoError(t, err)

	err = s.signOut(field(dave, FieldAccessToken), field(erin, FieldRefreshToken))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestServer_Ping(t *testing.T) {
	s := startTestServer(t)

	out := new(wrapperspb.StringValue)
	require.NoError(t, s.conn.Invoke(context.Background(), PingMethod, &emptypb.Empty{}, out))
	assert.Equal(t, "OK", out.GetValue())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", nopLogger{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", nopLogger{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}
