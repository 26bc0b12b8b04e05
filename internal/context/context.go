// Package context turns the knowledge base and the running conversation into
// the single prompt string sent to the model.
package context

// Assembler combines instructions, formatted knowledge, the current question
// and the accumulated history into a final prompt.
type Assembler interface {
	Assemble(instructions, knowledge, userMsg, history string) string
}
