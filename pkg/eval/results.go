package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"popeval/pkg/core"
)

// ResultsFileName builds the timestamped filename for a merged run.
func ResultsFileName(dataset string, now time.Time) string {
	return fmt.Sprintf("%s_%s.json", dataset, now.Format("060102150405"))
}

// WriteResults serializes the merged prediction list as a JSON array.
func WriteResults(path string, predictions []core.Prediction) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(predictions)
}

// ReadResults loads a results file back into memory.
func ReadResults(path string) ([]core.Prediction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var predictions []core.Prediction
	if err := json.NewDecoder(file).Decode(&predictions); err != nil {
		return nil, err
	}
	return predictions, nil
}

// MergeGathered decodes every rank's serialized prediction list and
// concatenates them in rank order, reproducing single-process order.
func MergeGathered(parts [][]byte) ([]core.Prediction, error) {
	var merged []core.Prediction
	for rank, part := range parts {
		if len(part) == 0 {
			continue
		}
		var local []core.Prediction
		if err := json.Unmarshal(part, &local); err != nil {
			return nil, fmt.Errorf("eval: decode predictions from rank %d: %w", rank, err)
		}
		merged = append(merged, local...)
	}
	return merged, nil
}
