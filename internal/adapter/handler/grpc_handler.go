package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
)

const (
	LedgerServiceName = "stockledger.v1.LedgerService"

	idempotencyMetadataKey = "idempotency-key"
)

// LedgerServer is the gRPC surface of the ledger. Requests and responses are
// google.protobuf.Struct values carrying the same JSON shapes as the HTTP API.
type LedgerServer interface {
	RecordTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ProductHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: LedgerServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RecordTransaction", Handler: unaryHandler("RecordTransaction", LedgerServer.RecordTransaction)},
		{MethodName: "ProductHistory", Handler: unaryHandler("ProductHistory", LedgerServer.ProductHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockledger/v1/ledger.proto",
}

func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

func unaryHandler(
	method string,
	call func(LedgerServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + LedgerServiceName + "/" + method

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type GRPCHandler struct {
	ledger *service.LedgerService
}

func NewGRPCHandler(ledger *service.LedgerService) *GRPCHandler {
	return &GRPCHandler{ledger: ledger}
}

func (h *GRPCHandler) RecordTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body TransactionBody
	if err := decodeStruct(in, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request body")
	}
	req, err := body.toRequest()
	if err != nil {
		return nil, grpcError(err)
	}

	entry, err := h.ledger.Idempotent(ctx, idempotencyKey(ctx), func(ctx context.Context) (*domain.LedgerEntry, error) {
		return h.ledger.RecordTransaction(ctx, req)
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return encodeStruct(entry)
}

func (h *GRPCHandler) ProductHistory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body HistoryBody
	if err := decodeStruct(in, &body); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request body")
	}

	entries, err := h.ledger.ProductHistory(ctx, body.ProductID, body.Limit)
	if err != nil {
		return nil, grpcError(err)
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return encodeStruct(map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func grpcError(err error) error {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return status.Error(codes.InvalidArgument, validationErr.Message)
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		return status.Error(codes.FailedPrecondition, msgBelowZero)
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(idempotencyMetadataKey); len(values) > 0 {
		return values[0]
	}
	return ""
}

func decodeStruct(in *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
