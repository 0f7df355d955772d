package cleaning

import (
	"fmt"

	"github.com/cyderes/olist-finalizer/internal/models"
	"github.com/cyderes/olist-finalizer/internal/table"
)

// Review columns
const (
	ColReviewScore    = "review_score"
	ColCommentTitle   = "review_comment_title"
	ColCommentMessage = "review_comment_message"
	ColReviewCategory = "review_category"
)

// ReviewTextColumns are blanked rather than left null.
var ReviewTextColumns = []string{ColCommentTitle, ColCommentMessage}

// ReviewReport summarizes a review enrichment pass.
type ReviewReport struct {
	// BlankedText counts null text cells per column replaced with "".
	BlankedText map[string]int
	Categories  map[models.ReviewCategory]int
}

// EnrichReviews replaces null review text with empty strings and appends the
// review_category column derived from review_score.
func EnrichReviews(reviews *table.Table) (ReviewReport, error) {
	report := ReviewReport{
		BlankedText: make(map[string]int, len(ReviewTextColumns)),
		Categories:  make(map[models.ReviewCategory]int),
	}
	if err := requireColumns(reviews, append([]string{ColReviewScore}, ReviewTextColumns...)...); err != nil {
		return report, err
	}

	scores, err := reviews.Column(ColReviewScore)
	if err != nil {
		return report, err
	}
	categories := make([]string, len(scores))
	for i, s := range scores {
		score, ok := table.ParseFloat(s)
		if !ok {
			return report, fmt.Errorf("%s row %d: %q: %w", ColReviewScore, i+1, s, ErrNotNumeric)
		}
		c := models.CategorizeReview(score)
		report.Categories[c]++
		categories[i] = string(c)
	}

	for _, col := range ReviewTextColumns {
		cells, err := reviews.Column(col)
		if err != nil {
			return report, err
		}
		for i, c := range cells {
			if table.IsNull(c) {
				cells[i] = ""
				report.BlankedText[col]++
			}
		}
		if err := reviews.SetColumn(col, cells); err != nil {
			return report, err
		}
	}

	return report, reviews.SetColumn(ColReviewCategory, categories)
}
