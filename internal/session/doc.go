// Package session owns credential verification and model selection.
//
// A Session verifies an API key by listing the provider's models, keeps the
// vision-capable subset, and hands the batch runner a Job built from the
// verified client and the selected model. The key is held only inside the
// session's client and never written anywhere. Store manages sessions for the
// HTTP service and expires idle ones.
package session
