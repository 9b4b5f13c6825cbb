// Package policy decides whether a codec request may run.
//
// Decisions come from Rego modules evaluated by an embedded Open Policy Agent
// engine, optionally preceded by cheap in-process filters. The package has no
// HTTP dependencies so policies can be tested and hot-reloaded independently of
// the server.
package policy
