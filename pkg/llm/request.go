package llm

// ChatRequest represents a chat completion request (OpenAI-compatible).
type ChatRequest struct {
	Model    string    `json:"model"`    // Model identifier (e.g., "gpt-3.5-turbo")
	Messages []Message `json:"messages"` // System preamble followed by the user utterance

	// Generation bounds
	MaxTokens   int     `json:"max_tokens"`  // Output length budget
	Temperature float64 `json:"temperature"` // Sampling temperature
}
