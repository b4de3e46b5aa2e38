package state

// UseKey identifies an application and substance pair, the unit of
// bookkeeping for every stream and parameterization.
type UseKey interface {
	Application() string
	Substance() string
}

// SimpleUseKey is a bare application and substance pair with no scope
// context attached.
type SimpleUseKey struct {
	application string
	substance   string
}

// NewSimpleUseKey creates a SimpleUseKey for the given pair.
func NewSimpleUseKey(application, substance string) SimpleUseKey {
	return SimpleUseKey{application: application, substance: substance}
}

// Application returns the application name.
func (k SimpleUseKey) Application() string { return k.application }

// Substance returns the substance name.
func (k SimpleUseKey) Substance() string { return k.substance }

// Scope is the cursor the interpreter moves through a simulation program:
// the current stanza, application, and substance. Scopes are immutable;
// the With methods return a modified copy.
type Scope struct {
	stanza      string
	application string
	substance   string
}

// NewScope creates a scope with the given stanza, application, and
// substance. Empty strings mean the level is not yet set.
func NewScope(stanza, application, substance string) Scope {
	return Scope{stanza: stanza, application: application, substance: substance}
}

// Stanza returns the current stanza name, e.g. "default" or a policy name.
func (s Scope) Stanza() string { return s.stanza }

// Application returns the current application name.
func (s Scope) Application() string { return s.application }

// Substance returns the current substance name.
func (s Scope) Substance() string { return s.substance }

// WithStanza returns a copy positioned at the given stanza. Application
// and substance reset because stanzas open a fresh context.
func (s Scope) WithStanza(stanza string) Scope {
	return Scope{stanza: stanza}
}

// WithApplication returns a copy positioned at the given application.
// Substance resets because it belongs to the prior application.
func (s Scope) WithApplication(application string) Scope {
	return Scope{stanza: s.stanza, application: application}
}

// WithSubstance returns a copy positioned at the given substance within
// the current application.
func (s Scope) WithSubstance(substance string) Scope {
	return Scope{stanza: s.stanza, application: s.application, substance: substance}
}

// SubstanceID names a registered application and substance pair.
type SubstanceID struct {
	Application string
	Substance   string
}
