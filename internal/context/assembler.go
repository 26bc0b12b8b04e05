package context

import "strings"

// KnowledgeMarker is replaced in the instructions by the formatted knowledge.
const KnowledgeMarker = "{knowledge}"

// DefaultInstructions is the static instruction block. Process stages are
// limited to the four labels listed in item 3.
const DefaultInstructions = `
You are an assistant to a customer-service agent. Based on the customer question below, help the agent look up relevant material in the following data:` + KnowledgeMarker + `
Please note:
1. First analyze the customer question and check whether the data contains similar or related information.
2. If related information exists, organize it as a bulleted list: historical question, historical answer, device generation (if present), category, process stage, keywords.
3. If no related information exists, analyze the customer question and give its category, process stage (only APP, pre-installation, mid-installation, post-installation) and keywords.
`

// StandardAssembler builds the prompt: instructions with the knowledge
// embedded, then the customer question, then the conversation history.
type StandardAssembler struct{}

// Assemble places knowledge at KnowledgeMarker, or after the instructions
// when the marker is absent.
func (a *StandardAssembler) Assemble(instructions, knowledge, userMsg, history string) string {
	var sb strings.Builder
	if strings.Contains(instructions, KnowledgeMarker) {
		sb.WriteString(strings.Replace(instructions, KnowledgeMarker, knowledge, 1))
	} else {
		sb.WriteString(instructions)
		sb.WriteString(knowledge)
	}
	sb.WriteString("\n# customer question: ")
	sb.WriteString(userMsg)
	sb.WriteString("\n# conversation history: ")
	sb.WriteString(history)
	return sb.String()
}
