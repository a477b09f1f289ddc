package fractalx

import "strings"

// Separator joins a parent id and a child name into a hierarchical id.
const Separator = "$"

// DeriveID returns the hierarchical id of child name under parentID.
// The base context has the empty id, so its children are addressed by name alone.
func DeriveID(parentID, name string) string {
	if parentID == "" {
		return name
	}
	return parentID + Separator + name
}

// ParentID returns the id one level up, or "" for top-level ids.
func ParentID(id string) string {
	idx := strings.LastIndex(id, Separator)
	if idx == -1 {
		return ""
	}
	return id[:idx]
}

// BaseName returns the last segment of id.
func BaseName(id string) string {
	idx := strings.LastIndex(id, Separator)
	if idx == -1 {
		return id
	}
	return id[idx+len(Separator):]
}

// Ancestors returns all ancestor ids of id including itself, outermost first.
func Ancestors(id string) []string {
	if id == "" {
		return nil
	}
	segments := strings.Split(id, Separator)
	ancestors := make([]string, len(segments))

	current := ""
	for i, seg := range segments {
		current = DeriveID(current, seg)
		ancestors[i] = current
	}
	return ancestors
}

// IsWithin reports whether id equals ancestor or is nested below it.
func IsWithin(id, ancestor string) bool {
	if ancestor == "" || id == ancestor {
		return true
	}
	return strings.HasPrefix(id, ancestor+Separator)
}
