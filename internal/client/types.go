package client

import (
	"fmt"

	"google.golang.org/grpc"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/rpc"
)

type DialConfig struct {
	Address    string
	Insecure   bool
	RootCA     string // optional root CA cert
	ClientCert string // optional client cert (mTLS)
	ClientKey  string // optional client key (mTLS)
}

// GRPCClient is a high-level client for the user service.  It satisfies
// loadtest.Target and loadtest.Deleter, so a load run can be pointed at
// a remote server.
type GRPCClient struct {
	conn *grpc.ClientConn
	api  rpc.UserServiceClient
}

func (c *GRPCClient) Client() rpc.UserServiceClient {
	return c.api
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func NewClient(cfg DialConfig) (*GRPCClient, error) {
	conn, err := dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to dial server: %w", err)
	}
	return &GRPCClient{conn: conn, api: rpc.NewUserServiceClient(conn)}, nil
}
