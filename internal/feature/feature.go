package feature

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	ErrMissingFeature   = errors.New("missing feature")
	ErrNonFiniteFeature = errors.New("non-finite feature value")
	ErrUnknownFeature   = errors.New("unknown feature")
)

// Name identifies one of the features a pipeline observation is described by.
type Name string

const (
	HoursSinceLastRun  Name = "hoursSinceLastRun"
	AvgFailureRate     Name = "avgFailureRate"
	DataVolumeVariance Name = "dataVolumeVariance"
	DayOfWeek          Name = "dayOfWeek"
	HourOfDay          Name = "hourOfDay"
)

// Count is the size of the closed feature set.
const Count = 5

// Names is the closed feature set in split search order. Changing the order
// changes which of two equally good splits wins.
var Names = [Count]Name{
	HoursSinceLastRun,
	AvgFailureRate,
	DataVolumeVariance,
	DayOfWeek,
	HourOfDay,
}

// Index returns the position of n in Names.
func Index(n Name) (int, error) {
	for i := range Names {
		if Names[i] == n {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownFeature, n)
}

func (n Name) String() string {
	return string(n)
}

// Vector is one observation. Keys outside Names are carried but never used
// for splitting.
type Vector map[Name]float64

func (v Vector) Value(n Name) (float64, error) {
	val, ok := v[n]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingFeature, n)
	}
	return val, nil
}

// Validate reports the first of Names absent from v.
func (v Vector) Validate() error {
	for _, n := range Names {
		if _, ok := v[n]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingFeature, n)
		}
	}
	return nil
}

// CheckFinite is Validate plus rejection of NaN and infinities.
func (v Vector) CheckFinite() error {
	if err := v.Validate(); err != nil {
		return err
	}
	for _, n := range Names {
		if val := v[n]; math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: %s=%v", ErrNonFiniteFeature, n, val)
		}
	}
	return nil
}

// Point returns the values of v in Names order.
func (v Vector) Point() ([Count]float64, error) {
	var p [Count]float64
	for i, n := range Names {
		val, err := v.Value(n)
		if err != nil {
			return p, err
		}
		p[i] = val
	}
	return p, nil
}

func (v Vector) Copy() Vector {
	v1 := make(Vector, len(v))
	for k, val := range v {
		v1[k] = val
	}
	return v1
}

// FromPoint is the inverse of Point.
func FromPoint(p [Count]float64) Vector {
	v := make(Vector, Count)
	for i, n := range Names {
		v[n] = p[i]
	}
	return v
}

// FormatValue renders a feature value the shortest way that round-trips.
func FormatValue(val float64) string {
	return strconv.FormatFloat(val, 'f', -1, 64)
}
