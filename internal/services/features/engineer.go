package features

import (
	"fmt"
	"math"

	"EnergyPull/internal/domain/models"
	applogger "EnergyPull/pkg/logger"
)

const (
	shortWindow = 6
	longWindow  = 12
	lagMonths   = 6

	// WarmupRows is the number of leading rows dropped so every feature is defined.
	WarmupRows = longWindow
)

// droppedColumns are excluded from training for low correlation with the target.
var droppedColumns = []string{models.ColGDP, models.ColRefineryUtil}

// Engineer turns a validated processed frame into the training frame.
type Engineer struct {
	l *applogger.Logger
}

func NewEngineer(l *applogger.Logger) *Engineer {
	if l == nil {
		l = applogger.NewNop()
	}
	return &Engineer{l: l}
}

// Build drops excluded columns, adds wti rolling means and lag, trims the
// warm-up rows and orders columns with wti last.
func (e *Engineer) Build(processed *models.MonthlyFrame) (*models.MonthlyFrame, error) {
	var missing []string
	for _, c := range models.ProcessedColumns() {
		if !processed.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{Missing: missing}
	}
	if processed.Len() <= WarmupRows {
		return nil, &models.InsufficientHistoryError{Rows: processed.Len(), Need: WarmupRows + 1}
	}

	f := processed.Drop(droppedColumns...)
	wti := f.Column(models.ColWTI)

	derived := []struct {
		name   string
		values []float64
	}{
		{models.ColWTIRolling6, RollingMean(wti, shortWindow)},
		{models.ColWTIRolling12, RollingMean(wti, longWindow)},
		{models.ColWTILag6, Lag(wti, lagMonths)},
	}
	for _, d := range derived {
		var err error
		if f, err = f.WithColumn(d.name, d.values); err != nil {
			return nil, fmt.Errorf("add %s: %w", d.name, err)
		}
	}

	f = f.SliceRows(WarmupRows, f.Len())
	if cells := f.MissingCells(); len(cells) > 0 {
		return nil, &models.ResidualNaNError{Cells: cells}
	}

	out, err := f.Select(models.TrainingColumns()...)
	if err != nil {
		return nil, fmt.Errorf("order training columns: %w", err)
	}
	if err := qualityCheck(out); err != nil {
		return nil, err
	}

	e.l.Info("training features built",
		applogger.Int("input_rows", processed.Len()),
		applogger.Int("rows", out.Len()),
		applogger.Strings("dropped", droppedColumns),
		applogger.Strings("columns", out.Columns()),
	)
	return out, nil
}

// qualityCheck rejects negative rolling means.
func qualityCheck(f *models.MonthlyFrame) error {
	for _, c := range []string{models.ColWTIRolling6, models.ColWTIRolling12} {
		for i, v := range f.Column(c) {
			if v < 0 || math.IsInf(v, 0) {
				return &models.QualityCheckError{Column: c, Date: f.Date(i), Value: v, Reason: "rolling mean must be non-negative"}
			}
		}
	}
	return nil
}
