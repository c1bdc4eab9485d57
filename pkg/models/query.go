package models

// QuerySpec is the filter/sort/aggregation part of a collection query.
// The client does not interpret it; it is forwarded to the remote store as is.
type QuerySpec struct {
	Filter       any           `json:"filter,omitempty"`
	Sort         []Sort        `json:"sort,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Search       string        `json:"searchQuery,omitempty"`
	Limit        int           `json:"limit,omitempty"`
}

type Sort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

type Aggregation struct {
	ID         string `json:"id,omitempty"`
	Property   string `json:"property"`
	Type       string `json:"type,omitempty"`
	ViewType   string `json:"view_type,omitempty"`
	Aggregator string `json:"aggregator"`
}

// QueryResult is the result part of a collection query response.
type QueryResult struct {
	Type               string              `json:"type"`
	BlockIDs           []string            `json:"blockIds"`
	AggregationResults []AggregationResult `json:"aggregationResults"`
	Total              int                 `json:"total"`
}

type AggregationResult struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}
