package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openlearn/sessionkit/identity"
)

// CollectionProfiles is the document collection holding canonical profiles,
// keyed by provider subject ID.
const CollectionProfiles = "profiles"

// DefaultRole is assigned at profile creation. Role changes are an admin
// operation outside this core; materialization never touches an existing role.
const DefaultRole = "user"

// Profile is the canonical, application-level user record derived from an
// identity assertion.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Provider  string    `json:"provider"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Materializer turns identity assertions into persisted canonical profiles.
//
// EnsureProfile is create-if-absent and safe to call twice in quick
// succession with the same assertion: the listener and the redirect resolver
// may both race it for the same sign-in.
type Materializer struct {
	docs DocumentStore
	now  func() time.Time
}

func NewMaterializer(docs DocumentStore) *Materializer {
	return &Materializer{docs: docs, now: time.Now}
}

// EnsureProfile returns the existing profile for the assertion's subject, or
// creates one with DefaultRole. An existing profile is returned unchanged:
// role and other admin-controlled fields are never clobbered here.
func (m *Materializer) EnsureProfile(ctx context.Context, a identity.Assertion) (Profile, error) {
	if a.SubjectID == "" {
		return Profile{}, fmt.Errorf("materialize profile: empty subject id")
	}

	if p, ok, err := m.load(ctx, a.SubjectID); err != nil {
		return Profile{}, err
	} else if ok {
		return p, nil
	}

	p := Profile{
		ID:        a.SubjectID,
		Email:     a.Email,
		Name:      a.DisplayName,
		AvatarURL: a.AvatarURL,
		Provider:  a.ProviderID,
		Role:      DefaultRole,
		CreatedAt: m.now().UTC(),
	}
	created, err := m.docs.Create(ctx, CollectionProfiles, p.ID, p)
	if err != nil {
		return Profile{}, fmt.Errorf("create profile %s: %w", p.ID, err)
	}
	if created {
		return p, nil
	}

	// Lost the create race; the winner's document is canonical.
	existing, ok, err := m.load(ctx, a.SubjectID)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, fmt.Errorf("profile %s vanished after create conflict", a.SubjectID)
	}
	return existing, nil
}

func (m *Materializer) load(ctx context.Context, subjectID string) (Profile, bool, error) {
	raw, ok, err := m.docs.Get(ctx, CollectionProfiles, subjectID)
	if err != nil {
		return Profile{}, false, fmt.Errorf("load profile %s: %w", subjectID, err)
	}
	if !ok {
		return Profile{}, false, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, false, fmt.Errorf("decode profile %s: %w", subjectID, err)
	}
	return p, true, nil
}
