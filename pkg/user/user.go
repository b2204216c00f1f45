package user

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleAdmin    Role = "ADMIN"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

type User struct {
	Id             int           `json:"id"`
	OrganisationId int           `json:"organisationId,omitempty"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Role           Role          `json:"role"`
	Department     string        `json:"department,omitempty"`
	Status         Status        `json:"status"`
	Managers       []ManagerLink `json:"managers,omitempty"`
}

type ManagerLink struct {
	Manager Ref `json:"manager"`
}

// Ref is the short form of a user embedded in other resources.
type Ref struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

func (u User) ManagerIds() []int {
	ids := make([]int, 0, len(u.Managers))
	for _, m := range u.Managers {
		ids = append(ids, m.Manager.Id)
	}
	return ids
}

// AuthUser is the identity attached to an authenticated session.
type AuthUser struct {
	UserId int    `json:"userId"`
	OrgId  int    `json:"orgId"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (u AuthUser) Capabilities() Capabilities {
	return CapabilitiesFor(u.Role)
}

type CreateUserRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Role       Role   `json:"role" validate:"required,oneof=EMPLOYEE MANAGER ADMIN"`
	Department string `json:"department,omitempty"`
	ManagerIds []int  `json:"managerIds,omitempty"`
}

// UpdateUserRequest carries only the fields to change.
type UpdateUserRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Password   *string `json:"password,omitempty" validate:"omitempty,min=1"`
	Role       *Role   `json:"role,omitempty" validate:"omitempty,oneof=EMPLOYEE MANAGER ADMIN"`
	Department *string `json:"department,omitempty"`
	ManagerIds []int   `json:"managerIds,omitempty"`
	Status     *Status `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}
