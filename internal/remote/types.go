package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Identity is an account known to the identity provider.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is an authenticated session issued by the identity provider.
type Session struct {
	Token      string    `json:"token"`
	IdentityID string    `json:"identityId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Document is a record of the remote document database.
type Document struct {
	Collection string         `json:"collection" validate:"required"`
	ID         string         `json:"id" validate:"required"`
	Fields     map[string]any `json:"fields"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// SortField names the timestamp a listing is ordered by. Listings are always descending.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
)

// Filter is an equality match on a top-level field. With Contains set the
// field is a list and matches when one of its elements equals Value.
type Filter struct {
	Field    string
	Value    string
	Contains bool
}

// Search is a case-insensitive full-text match on a string field.
type Search struct {
	Field string
	Term  string
}

// Query describes a listDocuments call.
type Query struct {
	Filters     []Filter
	Search      *Search
	OrderBy     SortField
	CursorAfter string
	Limit       int
}

// Page is one listDocuments result.
type Page struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}

// ObjectUpload is the payload of uploadObject.
type ObjectUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Object describes a stored binary object.
type Object struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Clock abstracts time so stores and operations are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces unique document and object ids.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// EncodeFields turns a tagged struct into a document field map.
func EncodeFields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return fields, nil
}

// DecodeFields fills a tagged struct from a document field map.
func DecodeFields(fields map[string]any, v any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	return nil
}

// CloneDocument deep-copies a document so stores never share maps with callers.
func CloneDocument(doc Document) (Document, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return Document{}, err
	}
	var copy Document
	if err := json.Unmarshal(b, &copy); err != nil {
		return Document{}, err
	}
	return copy, nil
}
