package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"popeval/pkg/core"
)

// vqaLine mirrors one line of a question file.
type vqaLine struct {
	Image      string          `json:"image"`
	Text       string          `json:"text"`
	QuestionID json.RawMessage `json:"question_id"`
	Answer     json.RawMessage `json:"answer,omitempty"`
}

// VQADataset reads image-question records from a JSONL question file.
// Every Get parses one line and decodes the referenced image from disk;
// nothing is cached.
type VQADataset struct {
	Root      string
	Prompt    string
	Transform Transform

	lines []string
}

// NewVQADataset loads the question file's non-empty lines. Image and
// line parsing are deferred to Get.
func NewVQADataset(root, questionFile, prompt string, transform Transform) (*VQADataset, error) {
	if transform == nil {
		return nil, fmt.Errorf("dataset: transform is required")
	}
	file, err := os.Open(questionFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &VQADataset{
		Root:      root,
		Prompt:    prompt,
		Transform: transform,
		lines:     lines,
	}, nil
}

// Len is the number of non-empty lines in the question file.
func (d *VQADataset) Len() int {
	return len(d.lines)
}

// Get reads, decodes, and transforms the record at idx.
func (d *VQADataset) Get(idx int) (core.Record, error) {
	if idx < 0 || idx >= len(d.lines) {
		return core.Record{}, fmt.Errorf("dataset: index %d out of range [0, %d)", idx, len(d.lines))
	}

	var line vqaLine
	if err := json.Unmarshal([]byte(d.lines[idx]), &line); err != nil {
		return core.Record{}, fmt.Errorf("dataset: line %d: %w", idx, err)
	}

	imagePath := filepath.Join(d.Root, line.Image)
	file, err := os.Open(imagePath)
	if err != nil {
		return core.Record{}, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return core.Record{}, fmt.Errorf("dataset: decode %s: %w", imagePath, err)
	}

	pixels, err := d.Transform(img)
	if err != nil {
		return core.Record{}, err
	}

	question := line.Text
	if d.Prompt != "" {
		question = question + " " + d.Prompt
	}

	return core.Record{
		QuestionID: line.QuestionID,
		Question:   question,
		Pixels:     pixels,
		Annotation: line.Answer,
	}, nil
}
