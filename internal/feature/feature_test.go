package feature

import (
	"errors"
	"math"
	"testing"
)

func full() Vector {
	return Vector{
		HoursSinceLastRun:  3,
		AvgFailureRate:     12.5,
		DataVolumeVariance: 40,
		DayOfWeek:          2,
		HourOfDay:          14,
	}
}

func TestVector_Validate(t *testing.T) {
	t.Parallel()
	missing := full()
	delete(missing, DayOfWeek)
	tests := []struct {
		name     string
		v        Vector
		expected error
	}{
		{name: "positive", v: full(), expected: nil},
		{name: "missing_day_of_week", v: missing, expected: ErrMissingFeature},
		{name: "empty", v: Vector{}, expected: ErrMissingFeature},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			err := test.v.Validate()
			if !errors.Is(err, test.expected) {
				t.Errorf("validate vector, got: %v, expected: %v", err, test.expected)
			}
		})
	}
}

func TestVector_CheckFinite(t *testing.T) {
	t.Parallel()
	nan := full()
	nan[AvgFailureRate] = math.NaN()
	inf := full()
	inf[HourOfDay] = math.Inf(1)
	tests := []struct {
		name     string
		v        Vector
		expected error
	}{
		{name: "positive", v: full(), expected: nil},
		{name: "nan", v: nan, expected: ErrNonFiniteFeature},
		{name: "inf", v: inf, expected: ErrNonFiniteFeature},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if err := test.v.CheckFinite(); !errors.Is(err, test.expected) {
				t.Errorf("check finite, got: %v, expected: %v", err, test.expected)
			}
		})
	}
}

func TestVector_Point(t *testing.T) {
	t.Parallel()
	p, err := full().Point()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := [Count]float64{3, 12.5, 40, 2, 14}
	if p != expected {
		t.Errorf("point conversion, got: %v, expected: %v", p, expected)
	}
	back := FromPoint(p)
	for _, n := range Names {
		if back[n] != full()[n] {
			t.Errorf("from point %s, got: %v, expected: %v", n, back[n], full()[n])
		}
	}
}

func TestIndex(t *testing.T) {
	t.Parallel()
	for i, n := range Names {
		got, err := Index(n)
		if err != nil || got != i {
			t.Errorf("index of %s, got: %d (%v), expected: %d", n, got, err, i)
		}
	}
	if _, err := Index("cpuLoad"); !errors.Is(err, ErrUnknownFeature) {
		t.Errorf("index of unknown feature, got: %v, expected: %v", err, ErrUnknownFeature)
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in       float64
		expected string
	}{
		{in: 3, expected: "3"},
		{in: 5.5, expected: "5.5"},
		{in: 0.125, expected: "0.125"},
	}
	for _, test := range tests {
		if got := FormatValue(test.in); got != test.expected {
			t.Errorf("format %v, got: %s, expected: %s", test.in, got, test.expected)
		}
	}
}
