package eval

import (
	"fmt"
	"sort"
)

// Collection describes where a benchmark's data lives and how long its
// answers are allowed to be.
type Collection struct {
	Root          string
	Question      string
	AnnotationDir string
	MinNewTokens  int
	MaxNewTokens  int
}

var collections = map[string]Collection{
	"pope": {
		Root:          "data/pope/val2014",
		Question:      "data/pope/llava_pope_test.jsonl",
		AnnotationDir: "data/pope/coco",
		MinNewTokens:  1,
		MaxNewTokens:  100,
	},
}

// Lookup resolves a dataset name to its collection config.
func Lookup(name string) (Collection, error) {
	cfg, ok := collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("eval: unknown dataset %q", name)
	}
	return cfg, nil
}

// Names lists the registered dataset names in sorted order.
func Names() []string {
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
