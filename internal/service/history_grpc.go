package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/platform-tracker/internal/departure"
)

const HistoryServiceName = "platformtracker.v1.HistoryService"

// HistoryRPC описывает серверный API platformtracker.v1.HistoryService.
// Сообщения google.protobuf.Struct, ответ лежит под ключом "data".
type HistoryRPC interface {
	PlatformDistribution(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AllDistributions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecentSnapshots(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// HistoryServer отдаёт HistoryService по gRPC.
type HistoryServer struct {
	history *HistoryService
}

func NewHistoryServer(history *HistoryService) *HistoryServer {
	return &HistoryServer{history: history}
}

// Ждёт day_of_week, scheduled_time и необязательный destination.
func (s *HistoryServer) PlatformDistribution(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	counts, err := s.history.PlatformDistribution(ctx,
		stringField(req, "day_of_week"),
		stringField(req, "scheduled_time"),
		stringField(req, "destination"),
	)
	if err != nil {
		return nil, toStatus("platform distribution", err)
	}
	return dataStruct(counts)
}

func (s *HistoryServer) AllDistributions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	all, err := s.history.AllDistributions(ctx)
	if err != nil {
		return nil, toStatus("all distributions", err)
	}
	return dataStruct(all)
}

// Необязательный числовой limit.
func (s *HistoryServer) RecentSnapshots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := 0
	if v, ok := req.GetFields()["limit"]; ok {
		if _, isNum := v.GetKind().(*structpb.Value_NumberValue); !isNum {
			return nil, status.Error(codes.InvalidArgument, "limit must be a number")
		}
		n := v.GetNumberValue()
		if math.IsNaN(n) || n < 0 || n > math.MaxInt32 || n != math.Trunc(n) {
			return nil, status.Error(codes.InvalidArgument, "limit must be a whole number between 0 and 2147483647")
		}
		limit = int(n)
	}

	rows, err := s.history.Recent(ctx, limit)
	if err != nil {
		return nil, toStatus("recent snapshots", err)
	}
	return dataStruct(rows)
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

// dataStruct заворачивает v в {"data": v} через JSON, чтобы ответ RPC
// совпадал с HTTP.
func dataStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(map[string]any{"data": v})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, departure.ErrValidation), errors.Is(err, departure.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

func RegisterHistoryServer(s grpc.ServiceRegistrar, srv HistoryRPC) {
	s.RegisterService(&HistoryServiceDesc, srv)
}

var HistoryServiceDesc = grpc.ServiceDesc{
	ServiceName: HistoryServiceName,
	HandlerType: (*HistoryRPC)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlatformDistribution", Handler: unaryHandler("PlatformDistribution", HistoryRPC.PlatformDistribution)},
		{MethodName: "AllDistributions", Handler: unaryHandler("AllDistributions", HistoryRPC.AllDistributions)},
		{MethodName: "RecentSnapshots", Handler: unaryHandler("RecentSnapshots", HistoryRPC.RecentSnapshots)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "platformtracker/v1/history.proto",
}

type structMethod func(HistoryRPC, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call structMethod) grpc.MethodHandler {
	fullMethod := "/" + HistoryServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(HistoryRPC), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(HistoryRPC), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Клиент platformtracker.v1.HistoryService.
type HistoryClient struct {
	cc grpc.ClientConnInterface
}

func NewHistoryClient(cc grpc.ClientConnInterface) *HistoryClient {
	return &HistoryClient{cc: cc}
}

func (c *HistoryClient) PlatformDistribution(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "PlatformDistribution", in, opts...)
}

func (c *HistoryClient) AllDistributions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "AllDistributions", in, opts...)
}

func (c *HistoryClient) RecentSnapshots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RecentSnapshots", in, opts...)
}

func (c *HistoryClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+HistoryServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
