package models

// Column names of the processed and training datasets.
const (
	ColDate         = "date"
	ColWTI          = "wti"
	ColEURUSD       = "eur_usd"
	ColInventory    = "inventory"
	ColProduction   = "production"
	ColRigs         = "rigs"
	ColRefineryUtil = "refinery_util"
	ColGDP          = "gdp"
	ColInflation    = "inflation"

	ColWTIRolling6  = "wti_6m_rolling"
	ColWTIRolling12 = "wti_12m_rolling"
	ColWTILag6      = "wti_6m_lag"
)

// Indicator describes one raw series: the file prefix the collectors write,
// its native cadence and the dataset column it becomes.
type Indicator struct {
	Prefix    string
	Frequency Frequency
	Column    string
}

var catalog = []Indicator{
	{Prefix: "wti", Frequency: Daily, Column: ColWTI},
	{Prefix: "currency", Frequency: Daily, Column: ColEURUSD},
	{Prefix: "inventory", Frequency: Weekly, Column: ColInventory},
	{Prefix: "production", Frequency: Monthly, Column: ColProduction},
	{Prefix: "rigs", Frequency: Monthly, Column: ColRigs},
	{Prefix: "refinery", Frequency: Monthly, Column: ColRefineryUtil},
	{Prefix: "gdp", Frequency: Quarterly, Column: ColGDP},
	{Prefix: "inflation", Frequency: Annual, Column: ColInflation},
}

// Catalog returns the fixed, ordered list of indicators. The slice is a copy.
func Catalog() []Indicator {
	out := make([]Indicator, len(catalog))
	copy(out, catalog)
	return out
}

// LookupIndicator finds a catalog entry by raw file prefix.
func LookupIndicator(prefix string) (Indicator, bool) {
	for _, ind := range catalog {
		if ind.Prefix == prefix {
			return ind, true
		}
	}
	return Indicator{}, false
}

// ProcessedColumns is the value column order of the processed dataset (date excluded).
func ProcessedColumns() []string {
	return []string{
		ColEURUSD, ColInventory, ColProduction, ColRigs,
		ColRefineryUtil, ColGDP, ColInflation, ColWTI,
	}
}

// TrainingColumns is the value column order of the training dataset (date excluded).
// The target column is always last.
func TrainingColumns() []string {
	return []string{
		ColEURUSD, ColInventory, ColProduction, ColRigs, ColInflation,
		ColWTIRolling6, ColWTIRolling12, ColWTILag6, ColWTI,
	}
}
