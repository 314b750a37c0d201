package hierarchy

import (
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/rkabuya/evaldesk/core"
)

// Axis is the top-level grouping of the evaluation hierarchy.
type Axis struct {
	ID          int         `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Description null.String `db:"description" json:"description,omitempty"`
}

// Indicator belongs to exactly one Axis. It is scored either directly
// (when it has no active Measures) or through its Measures.
type Indicator struct {
	ID               int         `db:"id" json:"id"`
	Name             string      `db:"name" json:"name"`
	Weight           float64     `db:"weight" json:"weight"`
	Description      null.String `db:"description" json:"description,omitempty"`
	AxisID           int         `db:"axis_id" json:"axis_id"`
	IsActive         bool        `db:"is_active" json:"is_active"`
	AllowDirectScore bool        `db:"allow_direct_score" json:"allow_direct_score"`

	// joined read-only fields
	AxisName string `db:"axis_name" json:"axis_name,omitempty"`
}

// Measure is the leaf scoring unit, child of exactly one Indicator.
type Measure struct {
	ID          int         `db:"id" json:"id"`
	Name        string      `db:"name" json:"name"`
	Weight      float64     `db:"weight" json:"weight"`
	Description null.String `db:"description" json:"description,omitempty"`
	IndicatorID int         `db:"indicator_id" json:"indicator_id"`
	IsActive    bool        `db:"is_active" json:"is_active"`

	// joined read-only fields
	IndicatorName string `db:"indicator_name" json:"indicator_name,omitempty"`
	AxisID        int    `db:"axis_id" json:"axis_id,omitempty"`
	AxisName      string `db:"axis_name" json:"axis_name,omitempty"`
}

// AxisNode / IndicatorNode form the full hierarchy tree returned to admins.
type (
	AxisNode struct {
		Axis
		Indicators []IndicatorNode `json:"indicators"`
	}

	IndicatorNode struct {
		Indicator
		Measures []Measure `json:"measures"`
	}
)

// NewAxis contains information needed to create a new Axis.
type NewAxis struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (na *NewAxis) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAxis defines what information may be provided to modify an existing Axis.
type UpdateAxis struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (ua *UpdateAxis) Validate(validate *validator.Validate) error {
	ua.Name = core.CleanString(ua.Name)
	ua.Description = core.CleanString(ua.Description)
	return validate.Struct(ua)
}

// NewIndicator contains information needed to create a new Indicator.
type NewIndicator struct {
	AxisID      int      `json:"axis_id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Weight      *float64 `json:"weight" validate:"required,weight"`
	Description string   `json:"description"`
	IsActive    *bool    `json:"is_active"`
}

func (ni *NewIndicator) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	ni.Description = core.CleanString(ni.Description)
	return validate.Struct(ni)
}

func (ni *NewIndicator) active() bool {
	if ni.IsActive == nil {
		return true
	}
	return *ni.IsActive
}

// UpdateIndicator defines what information may be provided to modify an existing Indicator.
type UpdateIndicator struct {
	AxisID      int      `json:"axis_id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Weight      *float64 `json:"weight" validate:"required,weight"`
	Description string   `json:"description"`
	IsActive    *bool    `json:"is_active"`
}

func (ui *UpdateIndicator) Validate(validate *validator.Validate) error {
	ui.Name = core.CleanString(ui.Name)
	ui.Description = core.CleanString(ui.Description)
	return validate.Struct(ui)
}

// NewMeasure contains information needed to create a new Measure.
type NewMeasure struct {
	IndicatorID int      `json:"indicator_id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Weight      *float64 `json:"weight" validate:"required,weight"`
	Description string   `json:"description"`
	IsActive    *bool    `json:"is_active"`
}

func (nm *NewMeasure) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

func (nm *NewMeasure) active() bool {
	if nm.IsActive == nil {
		return true
	}
	return *nm.IsActive
}

// UpdateMeasure defines what information may be provided to modify an existing Measure.
type UpdateMeasure struct {
	IndicatorID int      `json:"indicator_id" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Weight      *float64 `json:"weight" validate:"required,weight"`
	Description string   `json:"description"`
	IsActive    *bool    `json:"is_active"`
}

func (um *UpdateMeasure) Validate(validate *validator.Validate) error {
	um.Name = core.CleanString(um.Name)
	um.Description = core.CleanString(um.Description)
	return validate.Struct(um)
}
