package completion

import (
	"fmt"
	"strings"
)

// LanguageInstruction tells the model which language to answer in
func LanguageInstruction(language string) string {
	switch strings.ToLower(language) {
	case "", "chinese":
		return "请用中文回复，保持简洁明了的表达。"
	case "english":
		return "Please reply in English, keep your response concise and clear."
	default:
		return fmt.Sprintf("Please reply in %s, keep your response concise and clear.", language)
	}
}

// ContinuePrompt asks the model to carry on from its previous reply
func ContinuePrompt(language string) string {
	switch strings.ToLower(language) {
	case "", "chinese":
		return "请继续上文未完成的内容"
	case "english":
		return "Please continue the unfinished content above."
	default:
		return fmt.Sprintf("Please continue the unfinished content above. Reply in %s.", language)
	}
}

// SystemPrompt joins a role's input prompt, the language instruction and
// the role's output prompt, skipping empty parts.
func SystemPrompt(inputPrompt, outputPrompt, language string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{inputPrompt, LanguageInstruction(language), outputPrompt} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}
