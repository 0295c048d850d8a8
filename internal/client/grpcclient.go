package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/S0me0neR0man/pagestash/internal/grpcproto"
	"github.com/S0me0neR0man/pagestash/internal/keys"
	"github.com/S0me0neR0man/pagestash/internal/paging"
	"github.com/S0me0neR0man/pagestash/internal/record"
	"github.com/S0me0neR0man/pagestash/internal/token"
)

type GRPCClient struct {
	conn   *grpc.ClientConn
	client grpcproto.WordsClient
	// fields is the server's index, used to type keys and _creationTime
	fields keys.FieldList
}

// NewGRPCClient connects to target; an empty authToken sends no credentials
func NewGRPCClient(target string, fields keys.FieldList, authToken string, extra ...grpc.DialOption) (*GRPCClient, error) {
	c := GRPCClient{fields: fields}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if authToken != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(token.Static(authToken)))
	}
	opts = append(opts, extra...)

	var err error
	c.conn, err = grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	c.client = grpcproto.NewWordsClient(c.conn)

	return &c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) Insert(ctx context.Context, fields map[string]any) (*record.Document, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	resp, err := c.client.Insert(ctx, in)
	if err != nil {
		return nil, err
	}
	return grpcproto.DocumentFromStruct(resp, c.fields)
}

func (c *GRPCClient) InsertWord(ctx context.Context, word string) (*record.Document, error) {
	return c.Insert(ctx, map[string]any{record.WordField: word})
}

func (c *GRPCClient) Get(ctx context.Context, id string) (*record.Document, error) {
	resp, err := c.client.Get(ctx, wrapperspb.String(id))
	if err != nil {
		return nil, err
	}
	return grpcproto.DocumentFromStruct(resp, c.fields)
}

func (c *GRPCClient) Remove(ctx context.Context, id string) error {
	_, err := c.client.Remove(ctx, wrapperspb.String(id))
	return err
}

// PageCount false before the first maintenance pass
func (c *GRPCClient) PageCount(ctx context.Context) (int64, bool, error) {
	resp, err := c.client.PageCount(ctx, &emptypb.Empty{})
	if err != nil {
		return 0, false, err
	}
	if _, ok := resp.GetKind().(*structpb.Value_NumberValue); !ok {
		return 0, false, nil
	}
	return int64(resp.GetNumberValue()), true, nil
}

func (c *GRPCClient) PageOfWords(ctx context.Context, pageIndex int64) ([]*record.Document, error) {
	resp, err := c.client.PageOfWords(ctx, wrapperspb.Int64(pageIndex))
	if err != nil {
		return nil, err
	}
	return grpcproto.DocumentsFromList(resp, c.fields)
}

func (c *GRPCClient) Range(ctx context.Context, req paging.Request) (*paging.Page, error) {
	resp, err := c.client.Range(ctx, grpcproto.RangeRequestToStruct(req))
	if err != nil {
		return nil, err
	}
	return grpcproto.PageFromStruct(resp, c.fields)
}

// ComputePages starts a pass and returns its generation
func (c *GRPCClient) ComputePages(ctx context.Context) (uint64, error) {
	resp, err := c.client.ComputePages(ctx, &emptypb.Empty{})
	if err != nil {
		return 0, err
	}
	return uint64(resp.GetNumberValue()), nil
}
