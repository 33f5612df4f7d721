package server

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/rpc"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/service"
)

// UserService is the business API the transports delegate to.
// *service.Service implements it.
type UserService interface {
	Create(ctx context.Context, candidate model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, id int64, f model.Fields) (*model.User, error)
	Delete(ctx context.Context, id int64) error
}

// grpcServer implements the gRPC interface by delegating operations to
// a UserService.  It contains no business logic of its own; it only
// translates messages and maps error kinds to status codes.
type grpcServer struct {
	rpc.UnimplementedUserServiceServer
	svc    UserService
	logger *zap.Logger
}

// NewGRPCServer constructs a gRPC service implementation backed by the
// provided service.
func NewGRPCServer(svc UserService, logger *zap.Logger) rpc.UserServiceServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &grpcServer{svc: svc, logger: logger}
}

// CreateUser validates and stores a new user.  Validation failures map
// to InvalidArgument and duplicate emails to AlreadyExists.
func (s *grpcServer) CreateUser(ctx context.Context, req *rpc.CreateUserRequest) (*rpc.User, error) {
	u, err := s.svc.Create(ctx, req.ToModel())
	if err != nil {
		return nil, s.toStatus("create user", err)
	}
	return rpc.FromModel(u), nil
}

// GetUser returns a single user identified by id.  If the user is not
// found, a NotFound status code is returned.
func (s *grpcServer) GetUser(ctx context.Context, req *rpc.GetUserRequest) (*rpc.User, error) {
	u, err := s.svc.GetByID(ctx, req.Id)
	if err != nil {
		return nil, s.toStatus("get user", err)
	}
	if u == nil {
		return nil, status.Error(codes.NotFound, service.ErrNotFound.Error())
	}
	return rpc.FromModel(u), nil
}

func (s *grpcServer) GetUserByEmail(ctx context.Context, req *rpc.GetUserByEmailRequest) (*rpc.User, error) {
	u, err := s.svc.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.toStatus("get user by email", err)
	}
	if u == nil {
		return nil, status.Error(codes.NotFound, service.ErrNotFound.Error())
	}
	return rpc.FromModel(u), nil
}

// ListUsers streams all users to the client.  If no users exist, the
// stream is closed without sending any messages.
func (s *grpcServer) ListUsers(_ *emptypb.Empty, stream rpc.UserService_ListUsersServer) error {
	users, err := s.svc.List(stream.Context())
	if err != nil {
		return s.toStatus("list users", err)
	}
	for _, u := range users {
		if err := stream.Send(rpc.FromModel(u)); err != nil {
			return err
		}
	}
	return nil
}

func (s *grpcServer) UpdateUser(ctx context.Context, req *rpc.UpdateUserRequest) (*rpc.User, error) {
	u, err := s.svc.Update(ctx, req.Id, req.Fields())
	if err != nil {
		return nil, s.toStatus("update user", err)
	}
	return rpc.FromModel(u), nil
}

func (s *grpcServer) DeleteUser(ctx context.Context, req *rpc.DeleteUserRequest) (*emptypb.Empty, error) {
	if err := s.svc.Delete(ctx, req.Id); err != nil {
		return nil, s.toStatus("delete user", err)
	}
	return &emptypb.Empty{}, nil
}

// toStatus maps service error kinds onto gRPC codes.  Anything outside
// the taxonomy is an Internal error and gets logged.
func (s *grpcServer) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	}
	s.logger.Error(op+" failed", zap.Error(err))
	return status.Errorf(codes.Internal, "%s failed: %v", op, err)
}
