package core

// Fixed user-facing texts.
const (
	NotConfiguredText = "This service is not configured for this number yet. Please contact the business directly."
	ApologyText       = "I encountered an error while trying to respond. Please try again."
	CannotRespondText = "I'm sorry, I couldn't generate a response to that."
	PleaseWaitText    = "Please wait a few seconds before sending another message."

	DefaultSystemInstruction = "You are a helpful and friendly AI assistant for a business. " +
		"Answer questions based on the provided conversation history. " +
		"If you don't have enough information from the conversation history to answer a question, " +
		"you must state that you cannot answer the question and suggest contacting support. " +
		"Maintain a professional and polite tone. Do not invent information."
)
