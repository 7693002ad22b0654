package domain

// Affiliation types as reported by the MIT People API.
const (
	AffiliationStudent   = "student"
	AffiliationStaff     = "staff"
	AffiliationAffiliate = "affiliate"
)

// Department is one department entry inside an affiliation.
type Department struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Course is one course entry inside an affiliation.
type Course struct {
	DepartmentCode string `json:"departmentCode"`
	CourseOption   string `json:"courseOption"`
	Name           string `json:"name"`
}

// Affiliation describes one relationship a person has with the institute.
// A person can hold several at once (e.g. staff and grad student).
type Affiliation struct {
	Type        string       `json:"type"`
	ClassYear   string       `json:"classYear"`
	Departments []Department `json:"departments"`
	Courses     []Course     `json:"courses"`
}

// PersonRecord is the directory payload for one kerb, fetched fresh on every
// lookup and never persisted.
type PersonRecord struct {
	KerberosID          string        `json:"kerberosId"`
	GivenName           string        `json:"givenName"`
	FamilyName          string        `json:"familyName"`
	MiddleName          string        `json:"middleName"`
	DisplayName         string        `json:"displayName"`
	Email               string        `json:"email"`
	PhoneNumber         string        `json:"phoneNumber"`
	Website             string        `json:"website"`
	Affiliations        []Affiliation `json:"affiliations"`
	DirectorySuppressed bool          `json:"mitDirectorySuppressed"`
}
