// Package llm provides a client for OpenAI-compatible model listing and
// multimodal chat completion endpoints.
//
// # Entry Points
//
// NewClient: construct a client from Config (API key, base URL, timeout).
// Client.ListModels: GET {base_url}/models, used to verify a credential.
// Client.CompleteVision: POST {base_url}/chat/completions with one text part
// and one image part, requesting a JSON object response.
// DecodeStrictJSON: decode model output into a struct, tolerating code fences
// but rejecting unknown fields.
//
// # Failures
//
// Non-2xx responses surface as *APIError carrying the provider's
// error.message, or a fixed fallback message when none is present.
// Successful responses without content surface as *EmptyContentError.
// Requests are never retried.
package llm
