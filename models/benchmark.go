package models

type Rating string

const (
	RatingExcellent    Rating = "excellent"
	RatingGood         Rating = "good"
	RatingAverage      Rating = "average"
	RatingBelowAverage Rating = "below_average"
)

// MetricSet holds one value per benchmarked metric.
type MetricSet struct {
	Uptime      float64 `json:"uptime"`
	Storage     float64 `json:"storage"`
	Credits     float64 `json:"credits"`
	HealthScore float64 `json:"health_score"`
}

type PercentileSet struct {
	Uptime      int `json:"uptime"`
	Storage     int `json:"storage"`
	Credits     int `json:"credits"`
	HealthScore int `json:"health_score"`
}

type RankingSet struct {
	Uptime      int `json:"uptime"`
	Storage     int `json:"storage"`
	Credits     int `json:"credits"`
	HealthScore int `json:"health_score"`
	Overall     int `json:"overall"`
}

// Improvement is an actionable target for a single metric.
type Improvement struct {
	Metric  string  `json:"metric"`
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Label   string  `json:"label"`
}

// BenchmarkResult positions one node against the rest of the network.
type BenchmarkResult struct {
	Node            *NodeSnapshot `json:"node"`
	TotalNodes      int           `json:"total_nodes"`
	NetworkAverages MetricSet     `json:"network_averages"`
	Percentiles     PercentileSet `json:"percentiles"`
	Rankings        RankingSet    `json:"rankings"`
	Strengths       []string      `json:"strengths"`
	Weaknesses      []string      `json:"weaknesses"`
	OverallRating   Rating        `json:"overall_rating"`
	Improvements    []Improvement `json:"improvements"`
}

type Winner string

const (
	WinnerA   Winner = "A"
	WinnerB   Winner = "B"
	WinnerTie Winner = "tie"
)

type MetricComparison struct {
	Metric            string  `json:"metric"`
	ValueA            float64 `json:"value_a"`
	ValueB            float64 `json:"value_b"`
	Winner            Winner  `json:"winner"`
	Difference        float64 `json:"difference"`
	PercentDifference float64 `json:"percent_difference"`
}

// NodeComparison is a head-to-head of two nodes within the same population.
type NodeComparison struct {
	ResultA    *BenchmarkResult   `json:"result_a"`
	ResultB    *BenchmarkResult   `json:"result_b"`
	Comparison []MetricComparison `json:"comparison"`
}
