package gate

import "strings"

// ListMatch reports how a server id matched a settings list.
type ListMatch struct {
	Found bool
	// Deprecated is set when the match needed the legacy ext:<owner>:<name>
	// fallback; callers warn once per id.
	Deprecated bool
}

// IsInSettingsList checks membership of a server id in an allow or exclude
// list. Ids and entries are compared normalized. The legacy compound form
// ext:<owner>:<name> still matches on the trailing <name> segment, in either
// direction, but flags the match as deprecated.
func IsInSettingsList(id string, list []string) ListMatch {
	norm := NormalizeServerID(id)
	short := legacyShortName(norm)
	for _, entry := range list {
		e := NormalizeServerID(entry)
		if e == norm {
			return ListMatch{Found: true}
		}
		es := legacyShortName(e)
		if es == short && es != "" {
			return ListMatch{Found: true, Deprecated: true}
		}
	}
	return ListMatch{}
}

// legacyShortName extracts <name> from ext:<owner>:<name>, or returns the id
// unchanged when it is not in compound form.
func legacyShortName(id string) string {
	if !strings.HasPrefix(id, "ext:") {
		return id
	}
	parts := strings.Split(id, ":")
	return parts[len(parts)-1]
}
