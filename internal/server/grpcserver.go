package server

import (
	"context"
	"errors"
	"net"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/S0me0neR0man/pagestash/internal/collection"
	"github.com/S0me0neR0man/pagestash/internal/config"
	"github.com/S0me0neR0man/pagestash/internal/grpcproto"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/maintainer"
	"github.com/S0me0neR0man/pagestash/internal/metrics"
	"github.com/S0me0neR0man/pagestash/internal/service"
	"github.com/S0me0neR0man/pagestash/internal/token"
)

var (
	errMissingMetadata = status.Errorf(codes.InvalidArgument, "missing metadata")
	errInvalidToken    = status.Errorf(codes.Unauthenticated, "invalid token")
)

type GRPCServer struct {
	grpcproto.UnimplementedWordsServer

	words   *service.Words
	conf    config.ServerConfig
	metrics *metrics.Metrics
	sugar   *zap.SugaredLogger
	gserv   *grpc.Server

	wg sync.WaitGroup
}

func NewGRPCServer(words *service.Words, conf config.ServerConfig, m *metrics.Metrics, logger *zap.Logger) *GRPCServer {
	ss := &GRPCServer{
		words:   words,
		conf:    conf,
		metrics: m,
		sugar:   logger.Sugar(),
	}

	ss.gserv = grpc.NewServer(grpc.ChainUnaryInterceptor(ss.observe, ss.ensureValidToken))
	grpcproto.RegisterWordsServer(ss.gserv, ss)
	return ss
}

// Start listens on the configured address and serves until ctx is done
func (ss *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ss.conf.Addr)
	if err != nil {
		return err
	}
	return ss.Serve(ctx, lis)
}

func (ss *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	ss.sugar.Infow("grpcserver start", "addr", lis.Addr().String())

	ss.wg.Add(1)
	go ss.gracefulStop(ctx)

	return ss.gserv.Serve(lis)
}

func (ss *GRPCServer) gracefulStop(ctx context.Context) {
	defer ss.wg.Done()

	<-ctx.Done()
	ss.gserv.GracefulStop()
	ss.sugar.Infow("grpcserver stopped")
}

func (ss *GRPCServer) Wait() {
	ss.wg.Wait()
}

func (ss *GRPCServer) ensureValidToken(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if ss.conf.AuthToken == "" {
		return handler(ctx, req)
	}

	switch err := token.Check(ctx, ss.conf.AuthToken); {
	case errors.Is(err, token.ErrMissingToken):
		return nil, errMissingMetadata
	case err != nil:
		ss.sugar.Warnw("ensureValidToken", "method", info.FullMethod, "error", err)
		return nil, errInvalidToken
	}
	return handler(ctx, req)
}

func (ss *GRPCServer) observe(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	method := path.Base(info.FullMethod)
	start := time.Now()

	resp, err := handler(ctx, req)
	code := status.Code(err)

	ss.metrics.RPCTotal.WithLabelValues(method, code.String()).Inc()
	ss.metrics.RPCLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if code == codes.Internal || code == codes.Unknown {
		ss.sugar.Errorw("rpc", "method", method, "error", err)
	} else {
		ss.sugar.Debugw("rpc", "method", method, "code", code.String(), "elapsed", time.Since(start))
	}
	return resp, err
}

// toStatus maps domain errors onto gRPC codes
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrInvalidPageIndex):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, keys.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, collection.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, collection.ErrDuplicate):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, maintainer.ErrPassInProgress):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func (ss *GRPCServer) Insert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields, err := grpcproto.FieldsFromStruct(in, ss.words.Fields())
	if err != nil {
		return nil, toStatus(err)
	}
	doc, err := ss.words.Insert(ctx, fields)
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := grpcproto.DocumentToStruct(doc)
	return resp, toStatus(err)
}

func (ss *GRPCServer) Get(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	doc, err := ss.words.Get(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := grpcproto.DocumentToStruct(doc)
	return resp, toStatus(err)
}

func (ss *GRPCServer) Remove(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := ss.words.Remove(ctx, in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (ss *GRPCServer) PageCount(ctx context.Context, _ *emptypb.Empty) (*structpb.Value, error) {
	count, ok, err := ss.words.PageCount(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return structpb.NewNullValue(), nil
	}
	return structpb.NewNumberValue(float64(count)), nil
}

func (ss *GRPCServer) PageOfWords(ctx context.Context, in *wrapperspb.Int64Value) (*structpb.ListValue, error) {
	docs, err := ss.words.PageOfWords(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := grpcproto.DocumentsToList(docs)
	return resp, toStatus(err)
}

func (ss *GRPCServer) Range(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := grpcproto.RangeRequestFromStruct(in)
	if err != nil {
		return nil, toStatus(err)
	}
	page, err := ss.words.Range(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}

	resp, err := grpcproto.PageToStruct(page)
	return resp, toStatus(err)
}

func (ss *GRPCServer) ComputePages(ctx context.Context, _ *emptypb.Empty) (*structpb.Value, error) {
	gen, err := ss.words.ComputePages(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewNumberValue(float64(gen)), nil
}
