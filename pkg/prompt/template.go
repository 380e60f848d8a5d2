// Package prompt renders a question into the conversation format a
// checkpoint was tuned for.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

const vicunaSystem = "A chat between a curious user and an artificial intelligence assistant. " +
	"The assistant gives helpful, detailed, and polite answers to the user's questions."

type template struct {
	system    string
	userOpen  string
	userClose string
}

var templates = map[string]template{
	"plain": {},
	"vicuna_v1.1": {
		system:    vicunaSystem,
		userOpen:  "USER: ",
		userClose: " ASSISTANT:",
	},
}

// Render formats question using the named template.
func Render(name, question string) (string, error) {
	tpl, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("prompt: unknown template %q", name)
	}
	if tpl.system == "" && tpl.userOpen == "" {
		return question, nil
	}
	var builder strings.Builder
	if tpl.system != "" {
		builder.WriteString(tpl.system)
		builder.WriteString(" ")
	}
	builder.WriteString(tpl.userOpen)
	builder.WriteString(question)
	builder.WriteString(tpl.userClose)
	return builder.String(), nil
}

// Names lists the available template names in sorted order.
func Names() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
