package reconcile

// Config holds the configuration for the reconciler. Unlike the polling
// model this replaces, there is no tunable cycle interval — the
// reconciler is driven entirely by the IngressRoute event stream — but
// Config is kept as a struct, following the teacher's convention, so
// future fields (e.g. a handler timeout) have a home without changing
// NewReconciler's signature.
type Config struct {
	// EntryPoints lists every entrypoint name the dispatcher accepts
	// routes for. An IngressRoute naming any other entrypoint is
	// rejected with a logged warning (spec.md §7, UnknownEntrypoint).
	EntryPoints []string
}

// ApplyDefaults sets default values for zero-valued fields. Present for
// symmetry with the rest of the codebase's Config types; there is
// currently nothing to default.
func (c *Config) ApplyDefaults() {}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	return nil
}
