package models

// ChartType is the rendering kind of a chart.
type ChartType string

const (
	ChartLine ChartType = "line"
	ChartBar  ChartType = "bar"
)

// DataSource identifies a FRED series; Value is the series id.
type DataSource struct {
	Label string `json:"label" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// ChartConfig is the persisted description of one chart.
// ID is assigned by the backend and is nil before creation.
type ChartConfig struct {
	ID            *int        `json:"id,omitempty"`
	Title         string      `json:"title" validate:"required,min=1"`
	Type          ChartType   `json:"type" default:"line" validate:"required,oneof=line bar"`
	YLabel        string      `json:"yLabel,omitempty"`
	Color         string      `json:"color" default:"#4b8dff" validate:"required,len=7,hexcolor"`
	DataSource    *DataSource `json:"dataSource" validate:"required"`
	TimeFrequency string      `json:"timeFrequency" default:"1m" validate:"required,oneof=1d 1w 1m 1y"`
	LineStyle     string      `json:"lineStyle,omitempty" default:"solid" validate:"omitempty,oneof=solid dashed dotted"`
	BarStyle      string      `json:"barStyle,omitempty" default:"medium" validate:"omitempty,oneof=thin medium thick"`
}

// HasID reports whether the backend already assigned an id.
func (c ChartConfig) HasID() bool { return c.ID != nil }

// IDValue returns the id or 0 when unset.
func (c ChartConfig) IDValue() int {
	if c.ID == nil {
		return 0
	}
	return *c.ID
}

// WithoutID returns a copy suitable as a create payload.
func (c ChartConfig) WithoutID() ChartConfig {
	c.ID = nil
	return c
}

// WithID returns a copy carrying id.
func (c ChartConfig) WithID(id int) ChartConfig {
	c.ID = &id
	return c
}

// StrokeDashArray maps the line style to an SVG dash pattern.
func (c ChartConfig) StrokeDashArray() string {
	switch c.LineStyle {
	case "dashed":
		return "5 5"
	case "dotted":
		return "2 2"
	default:
		return ""
	}
}

// BarSize maps the bar style to a bar width in pixels.
func (c ChartConfig) BarSize() int {
	switch c.BarStyle {
	case "thin":
		return 10
	case "thick":
		return 30
	default:
		return 20
	}
}

// Page is one fetched page of the chart list.
type Page struct {
	Charts      []ChartConfig `json:"charts"`
	CurrentPage int           `json:"currentPage"`
	HasMore     bool          `json:"hasMore"`
}

// ChartsEnvelope is the backend body returned by create and delete.
type ChartsEnvelope struct {
	Charts []ChartConfig `json:"charts"`
}
