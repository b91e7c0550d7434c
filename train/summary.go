package train

import (
	"fmt"
	"io"
	"math"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Summary describes the losses of a run.
type Summary struct {
	Steps  int
	Mean   float64
	Median float64
	Min    float64
	Max    float64
	Losses []float64
}

// NewSummary computes summary statistics over losses.
func NewSummary(losses []float64) (Summary, error) {
	s := Summary{Steps: len(losses), Losses: losses}
	if len(losses) == 0 {
		return s, nil
	}
	values := stats.Float64Data(losses)
	var errs, err error
	s.Mean, err = values.Mean()
	errs = multierr.Combine(errs, err)
	s.Median, err = values.Median()
	errs = multierr.Combine(errs, err)
	s.Min, err = values.Min()
	errs = multierr.Combine(errs, err)
	s.Max, err = values.Max()
	errs = multierr.Combine(errs, err)
	return s, errs
}

// String prints the summary as a table.
func (s Summary) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Steps", "Mean", "Median", "Min", "Max"})
	t.AppendRow(table.Row{
		s.Steps,
		fmt.Sprintf("%.6f", s.Mean),
		fmt.Sprintf("%.6f", s.Median),
		fmt.Sprintf("%.6f", s.Min),
		fmt.Sprintf("%.6f", s.Max),
	})
	return t.Render()
}

// WriteHistogram prints a histogram of the losses with the given number of bins.
func (s Summary) WriteHistogram(w io.Writer, bins int) error {
	if len(s.Losses) == 0 {
		return errors.New("no losses to draw a histogram of")
	}
	if bins < 1 {
		return errors.Errorf("need at least one histogram bin, got %d", bins)
	}
	for _, l := range s.Losses {
		if math.IsNaN(l) || math.IsInf(l, 0) {
			return errors.New("cannot draw a histogram of non-finite losses")
		}
	}
	if s.Min == s.Max {
		_, err := fmt.Fprintf(w, "all %d losses are %.6f\n", len(s.Losses), s.Min)
		return err
	}
	return histogram.Fprint(w, histogram.Hist(bins, s.Losses), histogram.Linear(40))
}
