package model

// RepoInsights is the analysis payload returned for a repository.
type RepoInsights struct {
	Summary       string   `json:"summary"`
	CoolFacts     []string `json:"cool_facts"`
	Stars         int      `json:"stars"`
	LatestVersion string   `json:"latestVersion"`
	WebsiteURL    string   `json:"websiteUrl"`
	LicenseType   string   `json:"licenseType"`
}
