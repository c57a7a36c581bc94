package score

// Weights configures the relative importance of the four value
// dimensions. Expected (but not required) to sum to 1.
type Weights struct {
	CodeSignificance   float64 `json:"code_significance"`
	ProblemComplexity  float64 `json:"problem_complexity"`
	SolutionImportance float64 `json:"solution_importance"`
	Reusability        float64 `json:"reusability"`
}

// DefaultWeights returns the seed weight set.
func DefaultWeights() Weights {
	return Weights{
		CodeSignificance:   0.25,
		ProblemComplexity:  0.25,
		SolutionImportance: 0.3,
		Reusability:        0.2,
	}
}

// Dimension is one scored value dimension with its explanation.
type Dimension struct {
	// Score is clamped to [0,100].
	Score float64 `json:"score"`
	// Explanation is a short human-readable account of the score.
	Explanation string `json:"explanation"`
}

// Result carries the four dimension scores and the weighted total.
type Result struct {
	CodeSignificance   Dimension `json:"code_significance"`
	ProblemComplexity  Dimension `json:"problem_complexity"`
	SolutionImportance Dimension `json:"solution_importance"`
	Reusability        Dimension `json:"reusability"`

	// Total is the weighted sum, rounded to an integer.
	Total int `json:"total"`
}
