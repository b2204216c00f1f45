package report

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/highspring/timesheets/pkg/timesheet"
)

type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
	FormatPDF   Format = "pdf"
)

// Extension is the file extension of a downloaded export.
func (f Format) Extension() string {
	if f == FormatExcel {
		return "xlsx"
	}
	return string(f)
}

// FileName is the name an export is saved under.
func (f Format) FileName() string {
	return "highspring-report." + f.Extension()
}

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatExcel, FormatPDF:
		return Format(s), nil
	case "xlsx":
		return FormatExcel, nil
	}
	return "", fmt.Errorf("unknown export format %q, expected csv, excel or pdf", s)
}

// MonthlyFileName is used when the server does not name the monthly export.
func MonthlyFileName(year, month int) string {
	return fmt.Sprintf("timesheet-%d-%d.xlsx", year, month)
}

type Filters struct {
	DateFrom  string           `validate:"required,isodate"`
	DateTo    string           `validate:"required,isodate"`
	UserId    int              `validate:"gte=0"`
	Status    timesheet.Status `validate:"omitempty,oneof=DRAFT SUBMITTED APPROVED REJECTED"`
	ProjectId int              `validate:"gte=0"`
}

// Query encodes the filters, leaving out the optional ones that are unset.
func (f Filters) Query() url.Values {
	query := url.Values{}
	query.Set("dateFrom", f.DateFrom)
	query.Set("dateTo", f.DateTo)
	if f.UserId > 0 {
		query.Set("userId", strconv.Itoa(f.UserId))
	}
	if f.Status != "" {
		query.Set("status", string(f.Status))
	}
	if f.ProjectId > 0 {
		query.Set("projectId", strconv.Itoa(f.ProjectId))
	}
	return query
}

type Data struct {
	Timesheets     []timesheet.Timesheet `json:"timesheets"`
	TotalHours     float64               `json:"totalHours"`
	BillableHours  float64               `json:"billableHours"`
	UtilizationPct float64               `json:"utilizationPct"`
	Revenue        float64               `json:"revenue"`
}

type MonthlyRequest struct {
	UserId int `validate:"required,gt=0"`
	Year   int `validate:"required,gte=2000,lte=2100"`
	Month  int `validate:"required,gte=1,lte=12"`
}
