package aggregate

import "errors"

// ErrAggregateFailed wraps any source failure during a join.
var ErrAggregateFailed = errors.New("aggregation failed")
