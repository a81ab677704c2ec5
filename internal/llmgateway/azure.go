package llmgateway

// NewAzureBackend constructs a Backend against an Azure OpenAI
// deployment. Azure speaks the OpenAI-compatible chat completions
// wire protocol, so this is the OpenAIBackend pointed at the
// deployment's base URL with the Azure API key (see DESIGN.md).
func NewAzureBackend(apiKey, deploymentModel, baseURL string) *OpenAIBackend {
	return NewOpenAIBackend(apiKey, deploymentModel, baseURL)
}
