package models

// ReviewCategory buckets a review score by sentiment.
type ReviewCategory string

const (
	ReviewNegative ReviewCategory = "Negative"
	ReviewNeutral  ReviewCategory = "Neutral"
	ReviewPositive ReviewCategory = "Positive"
)

// CategorizeReview maps a review score to its category. Scores are not
// range-checked: anything that is neither <= 2 nor 3, NaN included, is Positive.
func CategorizeReview(score float64) ReviewCategory {
	switch {
	case score <= 2:
		return ReviewNegative
	case score == 3:
		return ReviewNeutral
	default:
		return ReviewPositive
	}
}
