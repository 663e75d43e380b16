// Package users exposes read access to the account directory. Credentials
// live with the gateway; this service only ever sees id, name, phone and
// role.
package users

import (
	"time"

	"github.com/meridian-dms/meridian-dms/internal/shared"
)

type User struct {
	ID        int64       `json:"id" db:"id"`
	Name      string      `json:"name" db:"name"`
	Phone     string      `json:"phone" db:"phone"`
	Role      shared.Role `json:"role" db:"role"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

type ListUsersRequest struct {
	Role    *shared.Role
	Search  string
	Page    int
	PerPage int
}

type ListUsersResponse struct {
	Users      []User            `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}
