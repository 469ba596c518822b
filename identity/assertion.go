package identity

// Assertion is a raw identity claim issued by a provider.
//
// Claims are normalized into this shape once, at the provider boundary, so no
// downstream consumer needs to know which provider produced an identity.
// An Assertion is never persisted as-is; the canonical record is the
// materialized profile.
type Assertion struct {
	ProviderID  string
	SubjectID   string
	Email       string
	DisplayName string
	AvatarURL   string
}
