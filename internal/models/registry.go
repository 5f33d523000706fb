package models

// Merge source tags recorded on every field the merge engine writes.
const (
	SourceRegistry = "REGISTRY"
	SourceDocument = "DOCUMENT"
)

// Verification statuses stored on profiles per track.
const (
	StatusNotVerified = "not_verified"
	StatusVerified    = "verified"
	StatusFailed      = "failed"
)

// RegistryRecord is the normalized shape for every registry provider
// response: professional registries return person records, company and
// commercial registries return organization records. Providers wrap their
// payloads differently ({"Data": [...]}, {"entries": [...]}, bare arrays);
// the registry service flattens all of them into this.
type RegistryRecord struct {
	ID                 string             `json:"id,omitempty"`
	FirstName          string             `json:"firstName,omitempty"`
	LastName           string             `json:"lastName,omitempty"`
	Name               string             `json:"name,omitempty"`
	GLN                string             `json:"gln,omitempty"`
	UID                string             `json:"uid,omitempty"`
	Status             string             `json:"status,omitempty"`
	Address            string             `json:"address,omitempty"`
	City               string             `json:"city,omitempty"`
	Canton             string             `json:"canton,omitempty"`
	Professions        []string           `json:"professions,omitempty"`
	ResponsiblePersons []ResponsiblePerson `json:"responsiblePersons,omitempty"`
}

// ResponsiblePerson is a person authorized to act for an organization.
type ResponsiblePerson struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name,omitempty"`
	Function  string `json:"function,omitempty"`
}

// FullName returns the person's display name, preferring the split fields.
func (p ResponsiblePerson) FullName() string {
	if p.FirstName != "" || p.LastName != "" {
		if p.FirstName == "" {
			return p.LastName
		}
		if p.LastName == "" {
			return p.FirstName
		}
		return p.FirstName + " " + p.LastName
	}
	return p.Name
}
