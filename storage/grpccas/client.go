package grpccas

import (
	"context"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/pixzle/cidutil"
	"xdao.co/pixzle/storage"
)

// Client stores fragments and manifests in a remote pixzle-casd.
//
// The daemon is not trusted: Put checks the CID it reports and Get re-hashes
// the bytes it returns, so a bad daemon cannot hand back the wrong fragment.
type Client struct {
	cc     *grpc.ClientConn
	client CASClient
	target string

	// Timeout bounds each call made through the context-free storage.CAS
	// methods. Zero means no deadline.
	Timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

type DialOptions struct {
	// Timeout bounds the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes raises the send and receive limits when non-zero. Fragments
	// of large images exceed the 4 MiB gRPC default.
	MaxMsgBytes int

	// Extra is appended to the default dial options.
	Extra []grpc.DialOption
}

// Dial connects to the pixzle-casd at target.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
		))
	}
	dialOpts = append(dialOpts, opts.Extra...)

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpccas: dial %s: %w", target, err)
	}
	return &Client{cc: cc, client: NewCASClient(cc), target: target}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(data []byte) (cid.Cid, error) {
	ctx, cancel := c.callContext()
	defer cancel()
	return c.PutContext(ctx, data)
}

func (c *Client) Get(id cid.Cid) ([]byte, error) {
	ctx, cancel := c.callContext()
	defer cancel()
	return c.GetContext(ctx, id)
}

func (c *Client) Has(id cid.Cid) bool {
	ctx, cancel := c.callContext()
	defer cancel()
	return c.HasContext(ctx, id)
}

// PutContext stores data and checks the daemon answered with its CID.
func (c *Client) PutContext(ctx context.Context, data []byte) (cid.Cid, error) {
	if c == nil || c.client == nil {
		return cid.Undef, storage.ErrNotFound
	}
	want, err := cidutil.Sum(data)
	if err != nil {
		return cid.Undef, err
	}
	reply, err := c.client.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return cid.Undef, fmt.Errorf("grpccas: put %s via %s: %w", want, c.target, mapRPC(err))
	}
	got, err := cid.Decode(reply.GetValue())
	if err != nil || !got.Defined() {
		return cid.Undef, fmt.Errorf("grpccas: put %s: daemon returned %q: %w", want, reply.GetValue(), storage.ErrInvalidCID)
	}
	if !got.Equals(want) {
		return cid.Undef, fmt.Errorf("grpccas: put %s: daemon returned %s: %w", want, got, storage.ErrCIDMismatch)
	}
	return got, nil
}

// GetContext fetches the object stored under id.
func (c *Client) GetContext(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	if c == nil || c.client == nil {
		return nil, storage.ErrNotFound
	}
	reply, err := c.client.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, fmt.Errorf("grpccas: get %s via %s: %w", id, c.target, mapRPC(err))
	}
	b := reply.GetValue()
	ok, err := cidutil.Matches(b, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("grpccas: get %s: %w", id, storage.ErrCIDMismatch)
	}
	return b, nil
}

// HasContext reports whether the daemon holds id. RPC failures report false.
func (c *Client) HasContext(ctx context.Context, id cid.Cid) bool {
	if !id.Defined() || c == nil || c.client == nil {
		return false
	}
	reply, err := c.client.Has(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return false
	}
	return reply.GetValue()
}

func (c *Client) callContext() (context.Context, context.CancelFunc) {
	if c == nil || c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}
