package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/rpc"
)

// ListUsers drains the ListUsers stream.
func (c *GRPCClient) ListUsers(ctx context.Context) ([]*model.User, error) {
	stream, err := c.api.ListUsers(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var users []*model.User
	for {
		u, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return users, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, u.ToModel())
	}
}

// Create sends u to the server and returns the stored user.  Server
// status errors are returned unwrapped so callers can inspect codes.
func (c *GRPCClient) Create(ctx context.Context, u model.User) (*model.User, error) {
	out, err := c.api.CreateUser(ctx, &rpc.CreateUserRequest{Name: u.Name, Email: u.Email, Age: int64(u.Age)})
	if err != nil {
		return nil, err
	}
	return out.ToModel(), nil
}

// GetUser returns the user identified by id, or nil if the server
// reports NotFound.
func (c *GRPCClient) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return orNil(c.api.GetUser(ctx, &rpc.GetUserRequest{Id: id}))
}

// GetUserByEmail is GetUser keyed by email.
func (c *GRPCClient) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return orNil(c.api.GetUserByEmail(ctx, &rpc.GetUserByEmailRequest{Email: email}))
}

func (c *GRPCClient) UpdateUser(ctx context.Context, id int64, f model.Fields) (*model.User, error) {
	out, err := c.api.UpdateUser(ctx, &rpc.UpdateUserRequest{Id: id, Name: f.Name, Email: f.Email, Age: int64(f.Age)})
	if err != nil {
		return nil, err
	}
	return out.ToModel(), nil
}

func (c *GRPCClient) Delete(ctx context.Context, id int64) error {
	_, err := c.api.DeleteUser(ctx, &rpc.DeleteUserRequest{Id: id})
	return err
}

func orNil(u *rpc.User, err error) (*model.User, error) {
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u.ToModel(), nil
}
