package models

// RegistryView is the part of the registry metadata the publish-date check
// needs: the publish time of every version, keyed by version string.
type RegistryView struct {
	Time map[string]string `json:"time"`
}

// PublishedAt returns the raw ISO-8601 publish time for version. A missing
// entry is not an error; the version simply cannot be evaluated. A present
// but empty entry is returned as is and fails to parse later.
func (v RegistryView) PublishedAt(version string) (string, bool) {
	ts, ok := v.Time[version]
	return ts, ok
}
