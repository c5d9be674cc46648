package remote

import (
	"context"
	"errors"
	"io"
)

// IdentityProvider is the authentication half of the remote boundary.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password, name string) (Identity, error)
	CreateSession(ctx context.Context, email, password string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	GetCurrentIdentity(ctx context.Context, token string) (Identity, error)
}

// DocumentStore is the remote document database.
// UpdateDocument merges the given fields into the stored ones.
type DocumentStore interface {
	CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	GetDocument(ctx context.Context, collection, id string) (Document, error)
	UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	DeleteDocument(ctx context.Context, collection, id string) error
	ListDocuments(ctx context.Context, collection string, q Query) (Page, error)
}

// ObjectStore is the remote binary object storage.
type ObjectStore interface {
	UploadObject(ctx context.Context, upload ObjectUpload) (Object, error)
	DeleteObject(ctx context.Context, id string) error
	GetObjectPreviewURL(ctx context.Context, id string) (string, error)
}

// ObjectReader is implemented by object stores that can stream object bytes
// themselves, so the local HTTP surface can serve their preview URLs.
type ObjectReader interface {
	OpenObject(ctx context.Context, id string) (io.ReadCloser, Object, error)
}

// Client bundles the three halves of the remote boundary.
type Client struct {
	IdentityProvider
	DocumentStore
	ObjectStore
}

// NewClient assembles a Client from its parts.
func NewClient(ids IdentityProvider, docs DocumentStore, objects ObjectStore) (*Client, error) {
	if ids == nil {
		return nil, errors.New("identity provider is nil")
	}
	if docs == nil {
		return nil, errors.New("document store is nil")
	}
	if objects == nil {
		return nil, errors.New("object store is nil")
	}
	return &Client{IdentityProvider: ids, DocumentStore: docs, ObjectStore: objects}, nil
}

// Close releases the resources of any part that holds them.
func (c *Client) Close() error {
	var errs []error
	for _, part := range []any{c.IdentityProvider, c.DocumentStore, c.ObjectStore} {
		if closer, ok := part.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
