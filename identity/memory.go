package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrEmailTaken         = errors.New("identity: email already registered")
)

type memoryUser struct {
	subjectID    string
	passwordHash []byte
	displayName  string
}

// MemoryProvider is an in-process Provider for development and tests.
//
// It keeps email/password accounts in memory (bcrypt-hashed), delivers change
// events synchronously, and lets tests script the popup outcome and a pending
// redirect result.
type MemoryProvider struct {
	providerID string

	mu              sync.Mutex
	users           map[string]memoryUser
	current         *Assertion
	pendingRedirect *Assertion
	popupIdentity   *Assertion
	popupOutcome    PopupOutcome
	redirectStarted bool
	subs            map[int]func(ChangeEvent)
	nextSub         int
}

func NewMemoryProvider(providerID string) *MemoryProvider {
	return &MemoryProvider{
		providerID:   providerID,
		users:        make(map[string]memoryUser),
		popupOutcome: PopupOK,
		subs:         make(map[int]func(ChangeEvent)),
	}
}

// ScriptPopup sets the outcome the next PopupSignIn calls will report.
func (p *MemoryProvider) ScriptPopup(outcome PopupOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.popupOutcome = outcome
}

// SetPopupIdentity sets the identity a successful popup sign-in produces.
func (p *MemoryProvider) SetPopupIdentity(a Assertion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a.ProviderID = p.providerID
	p.popupIdentity = &a
}

// SetPendingRedirect stages an assertion for the next ResolveRedirectResult
// call, simulating a completed full-page redirect sign-in.
func (p *MemoryProvider) SetPendingRedirect(a Assertion) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a.ProviderID = p.providerID
	p.pendingRedirect = &a
}

// RedirectStarted reports whether RedirectSignIn was invoked.
func (p *MemoryProvider) RedirectStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.redirectStarted
}

// Emit delivers a raw change event to all subscribers. Tests use it to inject
// subscription failures.
func (p *MemoryProvider) Emit(ev ChangeEvent) {
	p.mu.Lock()
	subs := make([]func(ChangeEvent), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (p *MemoryProvider) Subscribe(ctx context.Context, onChange func(ChangeEvent)) (func(), error) {
	_ = ctx
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = onChange
	current := p.current
	p.mu.Unlock()
	// Initial notification with the current identity, per the Provider
	// contract.
	onChange(ChangeEvent{Assertion: current})
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}, nil
}

func (p *MemoryProvider) ResolveRedirectResult(ctx context.Context) (*Assertion, error) {
	_ = ctx
	p.mu.Lock()
	a := p.pendingRedirect
	p.pendingRedirect = nil
	if a != nil {
		cp := *a
		p.current = &cp
	}
	p.mu.Unlock()
	return a, nil
}

func (p *MemoryProvider) PopupSignIn(ctx context.Context) PopupResult {
	_ = ctx
	p.mu.Lock()
	outcome := p.popupOutcome
	ident := p.popupIdentity
	p.mu.Unlock()

	if outcome != PopupOK {
		return PopupResult{Outcome: outcome}
	}
	if ident == nil {
		return PopupResult{Outcome: PopupFailed, Err: errors.New("identity: no popup identity configured")}
	}
	p.signIn(*ident)
	return PopupResult{Outcome: PopupOK, Assertion: ident}
}

func (p *MemoryProvider) RedirectSignIn(ctx context.Context) error {
	_ = ctx
	p.mu.Lock()
	p.redirectStarted = true
	ident := p.popupIdentity
	p.mu.Unlock()
	// The real flow leaves the process here; the dev provider stages the
	// identity so a later ResolveRedirectResult can pick it up.
	if ident != nil {
		p.SetPendingRedirect(*ident)
	}
	return nil
}

func (p *MemoryProvider) SignOut(ctx context.Context) error {
	_ = ctx
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.Emit(ChangeEvent{})
	return nil
}

func (p *MemoryProvider) EmailPasswordSignIn(ctx context.Context, email, password string) error {
	_ = ctx
	p.mu.Lock()
	u, ok := p.users[email]
	p.mu.Unlock()
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	p.signIn(Assertion{
		ProviderID:  p.providerID,
		SubjectID:   u.subjectID,
		Email:       email,
		DisplayName: u.displayName,
	})
	return nil
}

func (p *MemoryProvider) EmailPasswordSignUp(ctx context.Context, email, password string) error {
	_ = ctx
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if _, exists := p.users[email]; exists {
		p.mu.Unlock()
		return ErrEmailTaken
	}
	u := memoryUser{subjectID: uuid.NewString(), passwordHash: hash}
	p.users[email] = u
	p.mu.Unlock()
	p.signIn(Assertion{ProviderID: p.providerID, SubjectID: u.subjectID, Email: email})
	return nil
}

func (p *MemoryProvider) signIn(a Assertion) {
	p.mu.Lock()
	cp := a
	p.current = &cp
	p.mu.Unlock()
	p.Emit(ChangeEvent{Assertion: &cp})
}
