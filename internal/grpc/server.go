package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/dal"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/payload"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/pubsub"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/rules"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/session"
)

// OwnerMetadataKey carries the caller identity sessions are bound to. It is
// asserted by the caller, so the listener must either require TokenAuth or
// stay on a private network.
const OwnerMetadataKey = "x-owner-id"

const defaultListLimit = 20

// Server implements MatchLoggerServer on top of the session controller
type Server struct {
	sessions *session.Controller
	matches  dal.MatchLister
	bus      *pubsub.Bus
	labels   payload.Labels
}

// NewServer creates a new gRPC server. matches and bus may be nil.
func NewServer(sessions *session.Controller, matches dal.MatchLister, bus *pubsub.Bus, labels payload.Labels) *Server {
	return &Server{
		sessions: sessions,
		matches:  matches,
		bus:      bus,
		labels:   labels,
	}
}

// NewGRPCServer builds a grpc.Server with MatchLogger and the standard health
// service registered
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(loggingInterceptor)}, opts...)
	s := grpc.NewServer(opts...)
	RegisterMatchLoggerServer(s, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		logger.Debug("gRPC: Call failed", "method", info.FullMethod, "code", status.Code(err).String(), "error", err)
	} else {
		logger.Debug("gRPC: Call", "method", info.FullMethod, "duration", time.Since(start))
	}
	return resp, err
}

// GetCatalog returns modes, maps and roster
func (s *Server) GetCatalog(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	engine := s.sessions.Engine()
	c := engine.Catalog()
	return toStruct(map[string]interface{}{
		"modes":           c.Modes(),
		"maps":            c.Maps(),
		"roster":          c.Roster(),
		"freeForAllCode":  c.FreeForAllCode(),
		"labels":          s.labels,
		"exactRosterSize": engine.Policy().ExactRosterSize,
		"limits": map[string]int{
			"teamMin": rules.MinTeamPlayers,
			"teamMax": rules.MaxTeamPlayers,
			"ffaMin":  rules.MinFFAPlayers,
			"ffaMax":  rules.MaxFFAPlayers,
		},
	})
}

// StartSession opens a form for the caller. {"submitter": "Mario"}
func (s *Server) StartSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	submitter := req.GetFields()["submitter"].GetStringValue()

	id := s.sessions.Start(owner, submitter)
	out, err := s.sessions.Snapshot(id, owner)
	if err != nil {
		return nil, statusFromError(err)
	}
	return toStruct(out)
}

// GetSession returns a form. {"sessionId": "..."}
func (s *Server) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}
	out, err := s.sessions.Snapshot(req.GetFields()["sessionId"].GetStringValue(), owner)
	if err != nil {
		return nil, statusFromError(err)
	}
	return toStruct(out)
}

// HandleEvent applies one event. {"sessionId": "...", "event": {"kind": ...}}
func (s *Server) HandleEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := ownerFrom(ctx)
	if err != nil {
		return nil, err
	}

	fields := req.GetFields()
	raw := fields["event"].GetStructValue()
	if raw == nil {
		return nil, status.Error(codes.InvalidArgument, "event is required")
	}
	var ev session.Event
	if err := fromStruct(raw, &ev); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed event: %v", err)
	}
	kind, err := session.ParseEventKind(string(ev.Kind))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ev.Kind = kind

	id := fields["sessionId"].GetStringValue()
	logger.Debug("gRPC: Session event", "session_id", id, "event", string(kind))
	out, err := s.sessions.HandleEvent(ctx, id, owner, ev)
	if err != nil {
		return nil, statusFromError(err)
	}
	return toStruct(out)
}

// ListMatches returns recent matches. {"limit": 20}
func (s *Server) ListMatches(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.matches == nil {
		return nil, status.Error(codes.Unimplemented, "the configured store cannot list matches")
	}
	limit := int(req.GetFields()["limit"].GetNumberValue())
	if limit <= 0 {
		limit = defaultListLimit
	}

	matches, err := s.matches.ListMatches(ctx, limit)
	if err != nil {
		logger.Error("gRPC: Failed to list matches", "error", err)
		return nil, status.Error(codes.Unavailable, "failed to list matches")
	}
	return toStruct(map[string]interface{}{"matches": matches})
}

// WatchEvents streams bus events. {"types": ["match:recorded"]} filters them.
func (s *Server) WatchEvents(req *structpb.Struct, stream grpc.ServerStream) error {
	if s.bus == nil {
		return status.Error(codes.Unimplemented, "events are not configured")
	}
	var types []string
	for _, v := range req.GetFields()["types"].GetListValue().GetValues() {
		types = append(types, v.GetStringValue())
	}

	logger.Debug("gRPC: New client connected to event stream", "types", types)
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	var sendErr error
	s.bus.Handle(ctx, func(event pubsub.Event) {
		msg, err := toStruct(event)
		if err != nil {
			logger.Warn("gRPC: Failed to encode event", "type", event.Type, "error", err)
			return
		}
		if err := stream.SendMsg(msg); err != nil {
			logger.Error("gRPC: Failed to send event to stream", "error", err)
			sendErr = err
			cancel()
		}
	}, types...)

	logger.Debug("gRPC: Client disconnected from event stream")
	return sendErr
}

func ownerFrom(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if v := md.Get(OwnerMetadataKey); len(v) > 0 && v[0] != "" {
			return v[0], nil
		}
	}
	return "", status.Error(codes.Unauthenticated, OwnerMetadataKey+" metadata is required")
}

// statusFromError maps domain errors to gRPC codes
func statusFromError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, rules.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, rules.ErrConflict):
		code = codes.AlreadyExists
	case errors.Is(err, session.ErrIncomplete):
		code = codes.FailedPrecondition
	case errors.Is(err, session.ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, session.ErrSessionNotFound):
		code = codes.NotFound
	case errors.Is(err, session.ErrPersistence):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}

// toStruct converts any JSON encodable value into a Struct
func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// fromStruct decodes a Struct into a Go value through its JSON form
func fromStruct(in *structpb.Struct, v interface{}) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
