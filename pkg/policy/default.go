package policy

// DefaultEntrypoint is the decision path used when none is configured.
const DefaultEntrypoint = "cipher/decision"

// DefaultModule allows every request. The message length limit is enforced
// by LengthLimit ahead of the engine.
const DefaultModule = `package cipher

default decision := {"action": "allow"}
`

// DefaultModules returns the module set used when no policy files are configured.
func DefaultModules() map[string]string {
	return map[string]string{"default.rego": DefaultModule}
}
