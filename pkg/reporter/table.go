package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"popeval/pkg/core"
)

// Summarize tallies the merged predictions into answer buckets. POPE is
// a yes/no benchmark, so anything else lands in Other.
func Summarize(dataset, modelID, resultsFile string, predictions []core.Prediction) Summary {
	summary := Summary{
		Dataset:     dataset,
		ModelID:     modelID,
		ResultsFile: resultsFile,
		Total:       len(predictions),
	}
	for _, prediction := range predictions {
		answer := strings.ToLower(strings.TrimSpace(prediction.Text))
		switch {
		case strings.HasPrefix(answer, "yes"):
			summary.Yes++
		case strings.HasPrefix(answer, "no"):
			summary.No++
		default:
			summary.Other++
		}
	}
	return summary
}

type TableReporter struct {
	Writer io.Writer
}

func (r TableReporter) Report(summary Summary) error {
	table := tablewriter.NewWriter(r.Writer)
	table.Header([]string{"Field", "Value"})
	table.Append([]string{"Dataset", summary.Dataset})
	table.Append([]string{"Model", summary.ModelID})
	table.Append([]string{"Results file", summary.ResultsFile})
	table.Append([]string{"Predictions", fmt.Sprintf("%d", summary.Total)})
	table.Append([]string{"Answered yes", fmt.Sprintf("%d", summary.Yes)})
	table.Append([]string{"Answered no", fmt.Sprintf("%d", summary.No)})
	table.Append([]string{"Other answers", fmt.Sprintf("%d", summary.Other)})
	table.Render()
	return nil
}
