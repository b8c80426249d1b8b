package dataframe

import (
	"github.com/paveg/tripclean/internal/series"
)

// ISeries provides a type-erased interface for Series of any type
type ISeries interface {
	series.Erased
}
