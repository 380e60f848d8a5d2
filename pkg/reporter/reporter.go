package reporter

// Summary describes one merged evaluation run.
type Summary struct {
	Dataset     string
	ModelID     string
	ResultsFile string
	Total       int
	Yes         int
	No          int
	Other       int
}

// Reporter renders a run summary.
type Reporter interface {
	Report(summary Summary) error
}
