package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UserID accepts both numeric and string identifiers on the wire.
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// Int returns the numeric form of the id when it has one.
func (id UserID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return n, err == nil
}

// User is a roster entry and the signed-in profile.
type User struct {
	ID             UserID `json:"id" validate:"required"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email" validate:"required,email"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Role           string `json:"role"`
}

// RoleEmployee sees only its own tasks.
const RoleEmployee = "Employee"

func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}
