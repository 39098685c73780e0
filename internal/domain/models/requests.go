package models

// Requests for dashboard HTTP endpoints.

type ChartDataRequest struct {
	SeriesID  string `query:"series_id" json:"series_id" validate:"required"`
	Frequency string `query:"frequency" json:"frequency" default:"1m" validate:"oneof=1d 1w 1m 1y"`
}

type SeriesSearchRequest struct {
	Query  string `query:"q" json:"q"`
	Offset int    `query:"offset" json:"offset" default:"0" validate:"gte=0"`
}

type ChartIDRequest struct {
	ID int `param:"id" validate:"required,gte=1"`
}
