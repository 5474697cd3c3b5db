package grpc

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenMetadataKey carries the shared service token as "Bearer <token>"
const TokenMetadataKey = "authorization"

// tokenGuard rejects calls that do not present the shared token. The owner
// identity in x-owner-id is only trusted once the caller is authenticated.
type tokenGuard struct {
	token []byte
}

// TokenAuth returns server options requiring token on every MatchLogger call.
// Health checks stay open. An empty token disables the check.
func TokenAuth(token string) []grpc.ServerOption {
	if token == "" {
		return nil
	}
	g := &tokenGuard{token: []byte(token)}
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(g.unary),
		grpc.ChainStreamInterceptor(g.stream),
	}
}

func (g *tokenGuard) check(ctx context.Context, fullMethod string) error {
	if strings.HasPrefix(fullMethod, "/"+healthpb.Health_ServiceDesc.ServiceName+"/") {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get(TokenMetadataKey) {
		got, ok := strings.CutPrefix(v, "Bearer ")
		if ok && subtle.ConstantTimeCompare([]byte(got), g.token) == 1 {
			return nil
		}
	}
	return status.Error(codes.Unauthenticated, "a valid service token is required")
}

func (g *tokenGuard) unary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if err := g.check(ctx, info.FullMethod); err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

func (g *tokenGuard) stream(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if err := g.check(ss.Context(), info.FullMethod); err != nil {
		return err
	}
	return handler(srv, ss)
}
