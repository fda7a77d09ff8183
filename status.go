package mlearn

// Status tags every recoverable condition an estimator can report. A Status
// doubles as an error value so estimator entry points can return it directly
// or wrap it with context through an ErrorTrace.
type Status int

const (
	StatusSuccess Status = iota
	// StatusSuccessWithWarning marks a result that is usable but was computed
	// under a degraded condition (e.g. no support vectors found).
	StatusSuccessWithWarning
	StatusNotInitialized
	StatusWrongPrecision
	StatusInvalidPointer
	StatusInvalidArrayDimension
	StatusInvalidLeadingDimension
	StatusInvalidInput
	StatusInvalidOption
	StatusIncompatibleOptions
	// StatusOutOfDate means the model is stale: data changed after the last
	// fit, or predict was called before fit.
	StatusOutOfDate
	StatusNoData
	StatusUnknownQuery
	StatusMemoryError
	StatusInternalError
	StatusNumericalDifficulties
	StatusNegativeData
)

var statusNames = map[Status]string{
	StatusSuccess:                 "success",
	StatusSuccessWithWarning:      "success with warning",
	StatusNotInitialized:          "handle not initialized",
	StatusWrongPrecision:          "wrong precision",
	StatusInvalidPointer:          "invalid pointer",
	StatusInvalidArrayDimension:   "invalid array dimension",
	StatusInvalidLeadingDimension: "invalid leading dimension",
	StatusInvalidInput:            "invalid input",
	StatusInvalidOption:           "invalid option",
	StatusIncompatibleOptions:     "incompatible options",
	StatusOutOfDate:               "out of date",
	StatusNoData:                  "no data",
	StatusUnknownQuery:            "unknown query",
	StatusMemoryError:             "memory error",
	StatusInternalError:           "internal error",
	StatusNumericalDifficulties:   "numerical difficulties",
	StatusNegativeData:            "negative data",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown status"
}

func (s Status) Error() string { return s.String() }

// OK reports whether the status carries a usable result.
func (s Status) OK() bool {
	return s == StatusSuccess || s == StatusSuccessWithWarning
}
