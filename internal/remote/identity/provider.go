// Package identity emulates the external identity provider on top of a DocumentStore.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
	"golang.org/x/crypto/bcrypt"
)

const (
	identitiesCollection = "_identities"
	emailsCollection     = "_emails"
	sessionsCollection   = "_sessions"
)

type identityFields struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash"`
}

type emailFields struct {
	IdentityID string `json:"identityId"`
}

type sessionFields struct {
	IdentityID string `json:"identityId"`
}

// Provider stores identities, an email index and sessions as documents.
type Provider struct {
	docs remote.DocumentStore
	ids  remote.IDGenerator
	cost int
}

var _ remote.IdentityProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) { p.cost = cost }
}

// WithIDGenerator overrides identity id and session token generation.
func WithIDGenerator(ids remote.IDGenerator) Option {
	return func(p *Provider) { p.ids = ids }
}

func NewProvider(docs remote.DocumentStore, opts ...Option) *Provider {
	p := &Provider{
		docs: docs,
		ids:  remote.UUIDGenerator{},
		cost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *Provider) CreateIdentity(ctx context.Context, email, password, name string) (remote.Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return remote.Identity{}, fmt.Errorf("%w: email and password are required", remote.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return remote.Identity{}, fmt.Errorf("%w: hash password: %w", remote.ErrInvalidArgument, err)
	}

	id := p.ids.New()

	// The email index document is the uniqueness reservation.
	if _, err := p.docs.CreateDocument(ctx, emailsCollection, email, map[string]any{"identityId": id}); err != nil {
		if _, getErr := p.docs.GetDocument(ctx, emailsCollection, email); getErr == nil {
			return remote.Identity{}, fmt.Errorf("%w: %s", remote.ErrIdentityConflict, email)
		}
		return remote.Identity{}, fmt.Errorf("reserve email: %w", err)
	}

	doc, err := p.docs.CreateDocument(ctx, identitiesCollection, id, map[string]any{
		"email":        email,
		"name":         name,
		"passwordHash": string(hash),
	})
	if err != nil {
		if delErr := p.docs.DeleteDocument(ctx, emailsCollection, email); delErr != nil {
			logger.WithComponent("identity").Warnf("failed to release email reservation %s: %v", email, delErr)
		}
		return remote.Identity{}, fmt.Errorf("create identity: %w", err)
	}

	logger.WithComponent("identity").Infof("created identity %s for %s", id, email)
	return remote.Identity{ID: doc.ID, Email: email, Name: name, CreatedAt: doc.CreatedAt}, nil
}

func (p *Provider) CreateSession(ctx context.Context, email, password string) (remote.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return remote.Session{}, fmt.Errorf("%w: email and password are required", remote.ErrInvalidCredentials)
	}

	identityID, fields, err := p.lookupByEmail(ctx, email)
	if err != nil {
		return remote.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(fields.PasswordHash), []byte(password)); err != nil {
		return remote.Session{}, fmt.Errorf("%w: %s", remote.ErrInvalidCredentials, email)
	}

	token := p.ids.New()
	doc, err := p.docs.CreateDocument(ctx, sessionsCollection, token, map[string]any{"identityId": identityID})
	if err != nil {
		return remote.Session{}, fmt.Errorf("create session: %w", err)
	}
	return remote.Session{Token: token, IdentityID: identityID, CreatedAt: doc.CreatedAt}, nil
}

func (p *Provider) lookupByEmail(ctx context.Context, email string) (string, identityFields, error) {
	idx, err := p.docs.GetDocument(ctx, emailsCollection, email)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return "", identityFields{}, fmt.Errorf("%w: %s", remote.ErrInvalidCredentials, email)
		}
		return "", identityFields{}, err
	}
	var ref emailFields
	if err := remote.DecodeFields(idx.Fields, &ref); err != nil {
		return "", identityFields{}, err
	}

	doc, err := p.docs.GetDocument(ctx, identitiesCollection, ref.IdentityID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return "", identityFields{}, fmt.Errorf("%w: %s", remote.ErrInvalidCredentials, email)
		}
		return "", identityFields{}, err
	}
	var fields identityFields
	if err := remote.DecodeFields(doc.Fields, &fields); err != nil {
		return "", identityFields{}, err
	}
	return doc.ID, fields, nil
}

func (p *Provider) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return remote.ErrNoSession
	}
	if err := p.docs.DeleteDocument(ctx, sessionsCollection, token); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("%w: %w", remote.ErrNoSession, err)
		}
		return err
	}
	return nil
}

func (p *Provider) GetCurrentIdentity(ctx context.Context, token string) (remote.Identity, error) {
	if token == "" {
		return remote.Identity{}, remote.ErrNoSession
	}

	sessionDoc, err := p.docs.GetDocument(ctx, sessionsCollection, token)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return remote.Identity{}, remote.ErrNoSession
		}
		return remote.Identity{}, err
	}
	var session sessionFields
	if err := remote.DecodeFields(sessionDoc.Fields, &session); err != nil {
		return remote.Identity{}, err
	}

	doc, err := p.docs.GetDocument(ctx, identitiesCollection, session.IdentityID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return remote.Identity{}, fmt.Errorf("%w: identity %s is gone", remote.ErrNoSession, session.IdentityID)
		}
		return remote.Identity{}, err
	}
	var fields identityFields
	if err := remote.DecodeFields(doc.Fields, &fields); err != nil {
		return remote.Identity{}, err
	}
	return remote.Identity{ID: doc.ID, Email: fields.Email, Name: fields.Name, CreatedAt: doc.CreatedAt}, nil
}
