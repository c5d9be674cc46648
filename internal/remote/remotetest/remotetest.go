// Package remotetest provides in-memory remote clients, fault injection and a
// testify mock of the remote boundary for tests of the layers above it.
package remotetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bassista/snapgram/internal/remote"
	"github.com/bassista/snapgram/internal/remote/docstore"
	"github.com/bassista/snapgram/internal/remote/identity"
	"github.com/bassista/snapgram/internal/remote/objectstore"
	"github.com/bassista/snapgram/internal/testutil"
	"golang.org/x/crypto/bcrypt"
)

const PublicURL = "http://snapgram.test"

// Fixture is an in-memory remote client with handles on every part.
type Fixture struct {
	Client   *remote.Client
	Docs     *FaultyDocs
	Memory   *docstore.MemoryStore
	Objects  *objectstore.MemoryStore
	Identity *identity.Provider
	Clock    *testutil.TickingClock
}

// NewFixture builds a client whose document timestamps advance by one
// millisecond per write, so listings have a stable order.
func NewFixture(t testing.TB) *Fixture {
	t.Helper()
	clock := testutil.NewTickingClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC), time.Millisecond)
	mem := docstore.NewMemoryStore(clock)
	docs := &FaultyDocs{DocumentStore: mem}
	objects := objectstore.NewMemoryStore(PublicURL, 0, testutil.NewPrefixedIDGenerator("obj"), clock)
	ids := identity.NewProvider(mem, identity.WithBcryptCost(bcrypt.MinCost), identity.WithIDGenerator(testutil.NewPrefixedIDGenerator("acct")))

	client, err := remote.NewClient(ids, docs, objects)
	if err != nil {
		t.Fatalf("remote.NewClient: %v", err)
	}
	return &Fixture{Client: client, Docs: docs, Memory: mem, Objects: objects, Identity: ids, Clock: clock}
}

// FaultyDocs wraps a DocumentStore and fails writes or reads on demand.
type FaultyDocs struct {
	remote.DocumentStore

	mu         sync.Mutex
	failCreate map[string]error
	failUpdate map[string]error
	failList   map[string]error
	listCalls  map[string]int
}

// FailCreate makes CreateDocument on collection return err; nil clears it.
func (f *FaultyDocs) FailCreate(collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCreate = setFault(f.failCreate, collection, err)
}

func (f *FaultyDocs) FailUpdate(collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdate = setFault(f.failUpdate, collection, err)
}

func (f *FaultyDocs) FailList(collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failList = setFault(f.failList, collection, err)
}

// ListCalls returns how many ListDocuments calls reached collection.
func (f *FaultyDocs) ListCalls(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[collection]
}

func setFault(m map[string]error, collection string, err error) map[string]error {
	if m == nil {
		m = map[string]error{}
	}
	if err == nil {
		delete(m, collection)
	} else {
		m[collection] = err
	}
	return m
}

func (f *FaultyDocs) fault(m map[string]error, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[collection]
}

func (f *FaultyDocs) CreateDocument(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	if err := f.fault(f.failCreate, collection); err != nil {
		return remote.Document{}, err
	}
	return f.DocumentStore.CreateDocument(ctx, collection, id, fields)
}

func (f *FaultyDocs) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any) (remote.Document, error) {
	if err := f.fault(f.failUpdate, collection); err != nil {
		return remote.Document{}, err
	}
	return f.DocumentStore.UpdateDocument(ctx, collection, id, fields)
}

func (f *FaultyDocs) ListDocuments(ctx context.Context, collection string, q remote.Query) (remote.Page, error) {
	f.mu.Lock()
	if f.listCalls == nil {
		f.listCalls = map[string]int{}
	}
	f.listCalls[collection]++
	err := f.failList[collection]
	f.mu.Unlock()
	if err != nil {
		return remote.Page{}, err
	}
	return f.DocumentStore.ListDocuments(ctx, collection, q)
}
