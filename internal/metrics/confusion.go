package metrics

import "github.com/olho-vivo/presenca/internal/domain"

// confusion tallies labeled presences into a confusion matrix. FN is not read
// from the category field: an identity the pipeline missed entirely has no
// presence to label, so FN is the unresolved-identity count from coverage.
type confusion struct {
	TP int64
	TN int64
	FP int64
	FN int64
}

func tally(presences []domain.Presence, unresolved int) confusion {
	c := confusion{FN: int64(unresolved)}
	for _, p := range presences {
		switch p.ConfusionCategory {
		case domain.ConfusionTP:
			c.TP++
		case domain.ConfusionTN:
			c.TN++
		case domain.ConfusionFP:
			c.FP++
		}
	}
	return c
}

// Accuracy is (TP+TN)/(TP+TN+FP+FN), 0 when nothing is labeled.
func (c confusion) Accuracy() float64 {
	total := c.TP + c.TN + c.FP + c.FN
	if total == 0 {
		return 0
	}
	return float64(c.TP+c.TN) / float64(total)
}

// Precision is TP/(TP+FP), 0 when there are no positive predictions.
func (c confusion) Precision() float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

// Recall is TP/(TP+FN), 0 when there are no actual positives.
func (c confusion) Recall() float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// F1 is the harmonic mean of precision and recall, 0 when both are 0.
func (c confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
