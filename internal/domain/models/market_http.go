package models

// Requests for the UI-facing HTTP endpoints.

type TableRequest struct {
	Limit int `query:"limit" json:"limit" default:"60" validate:"gte=1,lte=1000"`
}

type PredictionRequest struct {
	Trigger bool `query:"trigger" json:"trigger"`
}

type HistoryRequest struct {
	// From and To accept RFC3339 or unix seconds/millis; default is the last 24h.
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=10000"`
}
