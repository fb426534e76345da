package engine

import (
	"fmt"
	"strings"
)

// Type classifies how a script engine is provided to the plugin.
type Type string

const (
	// Embedded is the always-available JavaScript engine shipped with the
	// plugin.
	Embedded Type = "embedded"
	// Plugged is an engine supplied as an external plugin binary.
	Plugged Type = "plugged"
	// Polyglot is a language hosted by an embeddable polyglot runtime.
	Polyglot Type = "polyglot"
)

// TypeFromString decodes the type component of a persisted descriptor value.
func TypeFromString(s string) (Type, bool) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Embedded:
		return Embedded, true
	case Plugged:
		return Plugged, true
	case Polyglot:
		return Polyglot, true
	default:
		return "", false
	}
}

// Descriptor identifies a script engine and the language it runs. Its string
// form "<type>/<id>" is used for persistence in the host's preferences.
type Descriptor struct {
	Type             Type
	ID               string
	LanguageName     string
	LanguageVersion  string
	EngineName       string
	EngineVersion    string
	ContentMimeTypes []string
}

// String returns the persisted "<type>/<id>" form.
func (d Descriptor) String() string {
	return string(d.Type) + "/" + d.ID
}

// ParseDescriptor decodes a persisted "<type>/<id>" value. A value without a
// slash selects the embedded engine with the value as id.
func ParseDescriptor(s string) (Descriptor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Descriptor{}, fmt.Errorf("%w: empty descriptor", ErrUnknownEngine)
	}
	typePart, id, found := strings.Cut(s, "/")
	if !found {
		return Descriptor{Type: Embedded, ID: strings.ToLower(typePart)}, nil
	}
	engineType, ok := TypeFromString(typePart)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: unknown engine type %q", ErrUnknownEngine, typePart)
	}
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Descriptor{}, fmt.Errorf("%w: descriptor %q has no engine id", ErrUnknownEngine, s)
	}
	return Descriptor{Type: engineType, ID: id}, nil
}
