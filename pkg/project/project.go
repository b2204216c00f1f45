package project

import (
	"math"

	"github.com/highspring/timesheets/pkg/user"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

type Project struct {
	Id             int                `json:"id"`
	OrganisationId int                `json:"organisationId,omitempty"`
	Code           string             `json:"code"`
	Name           string             `json:"name"`
	Client         string             `json:"client"`
	BudgetHours    float64            `json:"budgetHours"`
	UsedHours      float64            `json:"usedHours"`
	Status         Status             `json:"status"`
	Managers       []user.ManagerLink `json:"managers,omitempty"`
}

// Selectable reports whether new time entries may reference the project.
func (p Project) Selectable() bool {
	return p.Status != StatusInactive
}

// BudgetUsage is the rounded share of the budget already used, 0 without a budget.
func (p Project) BudgetUsage() int {
	if p.BudgetHours <= 0 {
		return 0
	}
	return int(math.Round(p.UsedHours / p.BudgetHours * 100))
}

func (p Project) Label() string {
	if p.Code == "" {
		return p.Name
	}
	return p.Code + " " + p.Name
}

type CreateRequest struct {
	Code        string  `json:"code" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Client      string  `json:"client" validate:"required"`
	BudgetHours float64 `json:"budgetHours" validate:"gte=0"`
	ManagerIds  []int   `json:"managerIds,omitempty"`
}

type UpdateRequest struct {
	Code        *string  `json:"code,omitempty" validate:"omitempty,min=1"`
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	Client      *string  `json:"client,omitempty"`
	BudgetHours *float64 `json:"budgetHours,omitempty" validate:"omitempty,gte=0"`
	ManagerIds  []int    `json:"managerIds,omitempty"`
	Status      *Status  `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}
