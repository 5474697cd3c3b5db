package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls MatchLogger as one owner
type Client struct {
	conn  grpc.ClientConnInterface
	owner string
	token string
}

// NewClient wraps conn; every call carries owner in its metadata
func NewClient(conn grpc.ClientConnInterface, owner string) *Client {
	return &Client{conn: conn, owner: owner}
}

// WithToken returns a copy of c that presents the shared service token
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	ctx = metadata.AppendToOutgoingContext(ctx, OwnerMetadataKey, c.owner)
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, TokenMetadataKey, "Bearer "+c.token)
	}
	return ctx
}

// Call invokes a unary method with a JSON shaped request
func (c *Client) Call(ctx context.Context, method string, req map[string]interface{}) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// HandleEvent sends one event to a session
func (c *Client) HandleEvent(ctx context.Context, sessionID string, event map[string]interface{}) (*structpb.Struct, error) {
	return c.Call(ctx, MethodHandleEvent, map[string]interface{}{
		"sessionId": sessionID,
		"event":     event,
	})
}

// EventStream receives bus events from WatchEvents
type EventStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event
func (s *EventStream) Recv() (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := s.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens an event stream, optionally filtered by event type
func (c *Client) Watch(ctx context.Context, types ...string) (*EventStream, error) {
	list := make([]interface{}, len(types))
	for i, t := range types {
		list[i] = t
	}
	in, err := structpb.NewStruct(map[string]interface{}{"types": list})
	if err != nil {
		return nil, err
	}

	stream, err := c.conn.NewStream(c.outgoing(ctx), &ServiceDesc.Streams[0], FullMethod(MethodWatchEvents))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}
