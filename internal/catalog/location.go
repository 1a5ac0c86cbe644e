package catalog

// Location is a merchant location from the locations endpoint. Locations
// are not catalog objects: they have no version or tombstone semantics and
// are replaced wholesale on each refresh.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Address  string `json:"address,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	Status   string `json:"status,omitempty"`
}
