package model

// User is the single entity managed by the service.  A User with a zero
// ID is transient: it has not been accepted by a store yet.  Stores
// assign IDs on first save and never reuse them.
type User struct {
	ID    int64  `json:"id" msgpack:"id"`
	Name  string `json:"name" msgpack:"name"`
	Email string `json:"email" msgpack:"email"`
	Age   int    `json:"age" msgpack:"age"`
}

// Fields carries the replacement values for an update.
type Fields struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}

// Clone returns a copy of u that shares no memory with it.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Apply overwrites the mutable fields of u with f.  The ID is left
// untouched.
func (u *User) Apply(f Fields) {
	u.Name = f.Name
	u.Email = f.Email
	u.Age = f.Age
}
