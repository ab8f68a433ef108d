package search

import (
	"fmt"

	"github.com/gwlsn/webpq/internal/model"
)

// thresholdRow holds the small/large acceptance threshold pair for one class.
type thresholdRow struct {
	small, large float64
}

// thresholds is the acceptance-threshold table by class and size. H1
// and H2 share the small-image threshold of 88.0; they diverge only
// at non-small sizes.
var thresholds = map[model.Class]thresholdRow{
	model.ClassL0: {small: 99.0, large: 95.0},
	model.ClassL1: {small: 99.0, large: 95.0},
	model.ClassL2: {small: 99.0, large: 95.0},
	model.ClassM1: {small: 98.0, large: 90.0},
	model.ClassH1: {small: 88.0, large: 75.0},
	model.ClassH2: {small: 88.0, large: 65.0},
}

// Threshold returns the acceptance threshold for a class and image size.
func Threshold(class model.Class, small bool) (float64, error) {
	row, ok := thresholds[class]
	if !ok {
		return 0, fmt.Errorf("search: unknown class %q", class)
	}
	if small {
		return row.small, nil
	}
	return row.large, nil
}

// StartQ returns the first quality level to probe for a class.
// H1 and H2 have the lowest thresholds in the table, so their search
// starts at the bottom of the range; the rest start at 10, skipping a
// range unlikely to ever accept.
func StartQ(class model.Class) int {
	if class == model.ClassH1 || class == model.ClassH2 {
		return 1
	}
	return 10
}
