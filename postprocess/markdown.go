package postprocess

import (
	"context"
	"strings"
)

// markdownReplacer removes formatting symbols that render badly when a
// reply is pasted into a plain text field.
var markdownReplacer = strings.NewReplacer(
	"*", "", "`", "", "#", "", "_", "", ">", "",
	"•", "", "·", "", "■", "", "□", "", "◆", "",
	"◇", "", "▲", "", "△", "", "▼", "", "▽", "",
)

// StripMarkdown removes markdown and bullet symbols, trims every line and
// drops blank lines
func StripMarkdown(text string) string {
	if text == "" {
		return text
	}

	text = markdownReplacer.Replace(text)

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// MarkdownProcessor wraps StripMarkdown as a pipeline stage
func MarkdownProcessor() Processor {
	return func(_ context.Context, text string) (string, error) {
		return StripMarkdown(text), nil
	}
}
