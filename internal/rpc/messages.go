package rpc

import "github.com/afoley587/coding-challenges-2025/usersvc/internal/model"

// User is the wire form of model.User.
type User struct {
	Id    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int64  `json:"age"`
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int64  `json:"age"`
}

type GetUserRequest struct {
	Id int64 `json:"id"`
}

type GetUserByEmailRequest struct {
	Email string `json:"email"`
}

type UpdateUserRequest struct {
	Id    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int64  `json:"age"`
}

type DeleteUserRequest struct {
	Id int64 `json:"id"`
}

// FromModel converts a stored user to its wire form.
func FromModel(u *model.User) *User {
	if u == nil {
		return nil
	}
	return &User{Id: u.ID, Name: u.Name, Email: u.Email, Age: int64(u.Age)}
}

func (u *User) ToModel() *model.User {
	if u == nil {
		return nil
	}
	return &model.User{ID: u.Id, Name: u.Name, Email: u.Email, Age: int(u.Age)}
}

func (r *CreateUserRequest) ToModel() model.User {
	return model.User{Name: r.Name, Email: r.Email, Age: int(r.Age)}
}

func (r *UpdateUserRequest) Fields() model.Fields {
	return model.Fields{Name: r.Name, Email: r.Email, Age: int(r.Age)}
}
