package remotetest

import (
	"context"

	"github.com/bassista/snapgram/internal/remote"
	"github.com/stretchr/testify/mock"
)

// Mock implements the whole remote boundary with testify expectations.
type Mock struct {
	mock.Mock
}

var (
	_ remote.IdentityProvider = (*Mock)(nil)
	_ remote.DocumentStore    = (*Mock)(nil)
	_ remote.ObjectStore      = (*Mock)(nil)
)

// Client wraps m as the three halves of a remote client.
func (m *Mock) Client() *remote.Client {
	return &remote.Client{IdentityProvider: m, DocumentStore: m, ObjectStore: m}
}

func (m *Mock) CreateIdentity(ctx context.Context, email, password, name string) (remote.Identity, error) {
	args := m.Called(ctx, email, password, name)
	return args.Get(0).(remote.Identity), args.Error(1)
}

func (m *Mock) CreateSession(ctx context.Context, email, password string) (remote.Session, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(remote.Session), args.Error(1)
}

func (m *Mock) DeleteSession(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *Mock) GetCurrentIdentity(ctx context.Context, token string) (remote.Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(remote.Identity), args.Error(1)
}

func (m *Mock) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	args := m.Called(ctx, collection, id, fields)
	return args.Get(0).(remote.Document), args.Error(1)
}

func (m *Mock) GetDocument(ctx context.Context, collection, id string) (remote.Document, error) {
	args := m.Called(ctx, collection, id)
	return args.Get(0).(remote.Document), args.Error(1)
}

func (m *Mock) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	args := m.Called(ctx, collection, id, fields)
	return args.Get(0).(remote.Document), args.Error(1)
}

func (m *Mock) DeleteDocument(ctx context.Context, collection, id string) error {
	return m.Called(ctx, collection, id).Error(0)
}

func (m *Mock) ListDocuments(ctx context.Context, collection string, q remote.Query) (remote.Page, error) {
	args := m.Called(ctx, collection, q)
	return args.Get(0).(remote.Page), args.Error(1)
}

func (m *Mock) UploadObject(ctx context.Context, upload remote.ObjectUpload) (remote.Object, error) {
	args := m.Called(ctx, upload)
	return args.Get(0).(remote.Object), args.Error(1)
}

func (m *Mock) DeleteObject(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *Mock) GetObjectPreviewURL(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}
