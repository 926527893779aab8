package oracle

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// ObserveMethod is the full gRPC method name of a remote scoring service.
// Request and response are google.protobuf.Struct messages.
const ObserveMethod = "/assessment.v1.Oracle/Observe"

// #region client-struct
// GRPCOracle delegates scoring to a remote inference service over gRPC.
type GRPCOracle struct {
	conn grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewGRPCOracle connects to the scoring service at addr.
func NewGRPCOracle(addr string) (*GRPCOracle, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &GRPCOracle{conn: conn}, nil
}

// NewGRPCOracleWithConn creates a GRPCOracle over an injected connection.
// Used for testing without a real gRPC server.
func NewGRPCOracleWithConn(conn grpc.ClientConnInterface) *GRPCOracle {
	return &GRPCOracle{conn: conn}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the oracle owns one.
func (o *GRPCOracle) Close() error {
	if c, ok := o.conn.(*grpc.ClientConn); ok {
		return c.Close()
	}
	return nil
}
// #endregion close

// #region observe
func (o *GRPCOracle) Observe(ctx context.Context, req Request) (state.Observation, error) {
	in, err := requestStruct(req)
	if err != nil {
		return state.Observation{}, fmt.Errorf("encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := o.conn.Invoke(ctx, ObserveMethod, in, out); err != nil {
		return state.Observation{}, fmt.Errorf("observe rpc: %w", err)
	}
	doc, err := out.MarshalJSON()
	if err != nil {
		return state.Observation{}, fmt.Errorf("%w: %v", ErrContract, err)
	}
	return Parse(string(doc), req.Profile)
}

func requestStruct(req Request) (*structpb.Struct, error) {
	dims := make([]any, len(req.Profile.Dimensions))
	for i, d := range req.Profile.Dimensions {
		dims[i] = d
	}
	turns := make([]any, len(req.Context))
	for i, t := range req.Context {
		turns[i] = map[string]any{"role": string(t.Role), "content": t.Content}
	}
	return structpb.NewStruct(map[string]any{
		"inventory":   string(req.Profile.ID),
		"instruction": req.Profile.Prompt(),
		"dimensions":  dims,
		"context":     turns,
		"input":       req.Input,
	})
}
// #endregion observe

var _ Oracle = (*GRPCOracle)(nil)
