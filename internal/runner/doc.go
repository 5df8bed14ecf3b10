// Package runner performs one exchange with the OpenAI Responses API.
//
// Invariant:
//   - the conversation State goes in with the Request and the new State comes
//     back in the Result; the runner never touches the state file itself.
//
// Flow:
//
//	Request{prompt, model, web_search, State} -> POST /responses -> Result{Reply, State}
package runner
