package grpcingest

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"tour-counter-go/internal/models"
)

// Client pushes ticks to a TickIngest server
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to addr without transport security
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tick ingest: %w", err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// PushTick sends one tick. An empty gateID targets the server's default gate.
func (c *Client) PushTick(ctx context.Context, gateID string, tick models.Tick) (models.TickAccepted, error) {
	in, err := encodeTick(gateID, tick)
	if err != nil {
		return models.TickAccepted{}, fmt.Errorf("encode tick: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, pushTickMethod, in, out); err != nil {
		return models.TickAccepted{}, err
	}
	return decodeAccepted(out), nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
