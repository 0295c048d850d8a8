// Package grpcproto the pagestash.v1.Words gRPC service.
//
// Messages are protobuf well-known types, so no generated code is needed:
// documents travel as structpb.Struct and index keys as base64 cursors.
package grpcproto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "pagestash.v1.Words"

	Words_Insert_FullMethodName       = "/pagestash.v1.Words/Insert"
	Words_Get_FullMethodName          = "/pagestash.v1.Words/Get"
	Words_Remove_FullMethodName       = "/pagestash.v1.Words/Remove"
	Words_PageCount_FullMethodName    = "/pagestash.v1.Words/PageCount"
	Words_PageOfWords_FullMethodName  = "/pagestash.v1.Words/PageOfWords"
	Words_Range_FullMethodName        = "/pagestash.v1.Words/Range"
	Words_ComputePages_FullMethodName = "/pagestash.v1.Words/ComputePages"
)

// WordsServer is the server API for the Words service
type WordsServer interface {
	Insert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Get(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Remove(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	// PageCount is a number, or null before the first pass
	PageCount(context.Context, *emptypb.Empty) (*structpb.Value, error)
	PageOfWords(context.Context, *wrapperspb.Int64Value) (*structpb.ListValue, error)
	Range(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ComputePages answers the generation of the started pass
	ComputePages(context.Context, *emptypb.Empty) (*structpb.Value, error)
	mustEmbedUnimplementedWordsServer()
}

// UnimplementedWordsServer must be embedded by WordsServer implementations
type UnimplementedWordsServer struct{}

func (UnimplementedWordsServer) Insert(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Insert not implemented")
}
func (UnimplementedWordsServer) Get(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Get not implemented")
}
func (UnimplementedWordsServer) Remove(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Remove not implemented")
}
func (UnimplementedWordsServer) PageCount(context.Context, *emptypb.Empty) (*structpb.Value, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PageCount not implemented")
}
func (UnimplementedWordsServer) PageOfWords(context.Context, *wrapperspb.Int64Value) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PageOfWords not implemented")
}
func (UnimplementedWordsServer) Range(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Range not implemented")
}
func (UnimplementedWordsServer) ComputePages(context.Context, *emptypb.Empty) (*structpb.Value, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ComputePages not implemented")
}
func (UnimplementedWordsServer) mustEmbedUnimplementedWordsServer() {}

func RegisterWordsServer(s grpc.ServiceRegistrar, srv WordsServer) {
	s.RegisterService(&Words_ServiceDesc, srv)
}

// unary builds a method handler decoding Req and dispatching through the interceptor chain
func unary[Req any](fullMethod string, call func(WordsServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(WordsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(WordsServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var Words_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WordsServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Insert",
			Handler: unary(Words_Insert_FullMethodName, func(s WordsServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.Insert(ctx, in)
			}),
		},
		{
			MethodName: "Get",
			Handler: unary(Words_Get_FullMethodName, func(s WordsServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.Get(ctx, in)
			}),
		},
		{
			MethodName: "Remove",
			Handler: unary(Words_Remove_FullMethodName, func(s WordsServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
				return s.Remove(ctx, in)
			}),
		},
		{
			MethodName: "PageCount",
			Handler: unary(Words_PageCount_FullMethodName, func(s WordsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.PageCount(ctx, in)
			}),
		},
		{
			MethodName: "PageOfWords",
			Handler: unary(Words_PageOfWords_FullMethodName, func(s WordsServer, ctx context.Context, in *wrapperspb.Int64Value) (any, error) {
				return s.PageOfWords(ctx, in)
			}),
		},
		{
			MethodName: "Range",
			Handler: unary(Words_Range_FullMethodName, func(s WordsServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.Range(ctx, in)
			}),
		},
		{
			MethodName: "ComputePages",
			Handler: unary(Words_ComputePages_FullMethodName, func(s WordsServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.ComputePages(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pagestash/v1/words.proto",
}

// WordsClient is the client API for the Words service
type WordsClient interface {
	Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Remove(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	PageCount(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Value, error)
	PageOfWords(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Range(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ComputePages(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Value, error)
}

type wordsClient struct {
	cc grpc.ClientConnInterface
}

func NewWordsClient(cc grpc.ClientConnInterface) WordsClient {
	return &wordsClient{cc}
}

func (c *wordsClient) Insert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Words_Insert_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *wordsClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Words_Get_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *wordsClient) Remove(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, Words_Remove_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *wordsClient) PageCount(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Value, error) {
	out := new(structpb.Value)
	if err := c.cc.Invoke(ctx, Words_PageCount_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *wordsClient) PageOfWords(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, Words_PageOfWords_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *wordsClient) Range(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Words_Range_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *wordsClient) ComputePages(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Value, error) {
	out := new(structpb.Value)
	if err := c.cc.Invoke(ctx, Words_ComputePages_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
