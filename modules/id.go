package modules

import (
	"fmt"
	"path"
	"strings"
)

// ID is a validated module specifier. IDs are immutable; Normalized returns
// a new value.
type ID struct {
	raw string
}

// NewID validates a raw module specifier. It fails with ErrInvalidModuleID
// if the specifier is empty or contains characters a repository can't
// process. Whether a relative specifier escapes its resolution base is not
// decided here; that depends on the context and is checked at resolution
// time.
func NewID(raw string) (ID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ID{}, fmt.Errorf("%w: empty specifier", ErrInvalidModuleID)
	}
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	for _, r := range trimmed {
		if r < 0x20 || strings.ContainsRune(`:*?"<>|`, r) {
			return ID{}, fmt.Errorf(
				"%w: disallowed character %q in %q", ErrInvalidModuleID, r, raw)
		}
	}
	return ID{raw: trimmed}, nil
}

// MustID is a test and wiring helper. It panics if raw is invalid.
func MustID(raw string) ID {
	id, err := NewID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	return id.raw
}

// IsRelative reports whether the specifier is resolved against the context
// URI of the requiring module ("./foo", "../foo") instead of the repository
// root.
func (id ID) IsRelative() bool {
	return strings.HasPrefix(id.raw, "./") || strings.HasPrefix(id.raw, "../") ||
		id.raw == "." || id.raw == ".."
}

// Normalized collapses redundant slashes, resolves "." and ".." segments
// lexically, and strips a trailing language suffix. Leading ".." segments of
// a relative specifier survive normalization; whether they stay inside the
// repository is decided during resolution.
func (id ID) Normalized() ID {
	relative := id.IsRelative()
	cleaned := path.Clean(id.raw)
	if !relative {
		cleaned = strings.TrimPrefix(cleaned, "/")
	}
	for _, suffix := range []string{".js", ".mjs"} {
		if trimmed := strings.TrimSuffix(cleaned, suffix); trimmed != cleaned && trimmed != "" {
			cleaned = trimmed
			break
		}
	}
	if relative && cleaned != "." && cleaned != ".." &&
		!strings.HasPrefix(cleaned, "./") && !strings.HasPrefix(cleaned, "../") {
		cleaned = "./" + cleaned
	}
	return ID{raw: cleaned}
}

// normalizedExact collapses segments like Normalized but keeps a trailing
// language suffix. Resolution probes this form before the suffixed
// candidates, so "foo.mjs" still finds a literal foo.mjs in a repository
// whose primary suffix is ".js".
func (id ID) normalizedExact() string {
	cleaned := path.Clean(id.raw)
	if !id.IsRelative() {
		cleaned = strings.TrimPrefix(cleaned, "/")
	}
	return cleaned
}

// Equal reports whether two specifiers name the same module after
// normalization.
func (id ID) Equal(other ID) bool {
	return id.Normalized().raw == other.Normalized().raw
}
