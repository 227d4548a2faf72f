package models

// UserFlags is the placeholder account state kept per client identity. There
// is no credential check behind it.
type UserFlags struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsPremiumUser   bool   `json:"isPremiumUser"`
	Email           string `json:"email,omitempty"`
}
