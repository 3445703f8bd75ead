// Package objectstoretest provides an in-memory objectstore.Store that records
// every call, for use in tests.
package objectstoretest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/debemdeboas/memories/internal/objectstore"
)

type Store struct {
	mu sync.Mutex

	objects map[string][]byte
	deletes map[string]int
	uploads int
	next    int

	// FailUploads makes every Upload fail with this error.
	FailUploads error
	// FailDeletes makes Delete fail for the listed ids.
	FailDeletes map[string]error
	// DeleteGate, when set, blocks every Delete until it is closed or the
	// context ends.
	DeleteGate chan struct{}
	// Deleted receives the id of every Delete call that reached the store.
	Deleted chan string
}

func New() *Store {
	return &Store{
		objects:     make(map[string][]byte),
		deletes:     make(map[string]int),
		FailDeletes: make(map[string]error),
	}
}

func (s *Store) Upload(ctx context.Context, u objectstore.Upload) (objectstore.Object, error) {
	if s.FailUploads != nil {
		return objectstore.Object{}, s.FailUploads
	}
	var data []byte
	if u.Body != nil {
		var err error
		if data, err = io.ReadAll(u.Body); err != nil {
			return objectstore.Object{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.uploads++
	id := fmt.Sprintf("memories/%d-%s", s.next, u.Name)
	s.objects[id] = data
	return objectstore.Object{RemoteID: id, URL: "https://cdn.test/" + id}, nil
}

func (s *Store) Delete(ctx context.Context, remoteID string, _ objectstore.DeleteOptions) error {
	if s.Deleted != nil {
		defer func() { s.Deleted <- remoteID }()
	}
	if s.DeleteGate != nil {
		select {
		case <-s.DeleteGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes[remoteID]++
	if err, ok := s.FailDeletes[remoteID]; ok {
		return err
	}
	if _, ok := s.objects[remoteID]; !ok {
		return objectstore.ErrNotFound
	}
	delete(s.objects, remoteID)
	return nil
}

// Put seeds an object without counting an upload.
func (s *Store) Put(remoteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[remoteID] = nil
}

func (s *Store) Has(remoteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[remoteID]
	return ok
}

// Deletes returns how many times Delete was called for remoteID.
func (s *Store) Deletes(remoteID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes[remoteID]
}

// TotalDeletes returns the number of Delete calls across all ids.
func (s *Store) TotalDeletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.deletes {
		n += c
	}
	return n
}

func (s *Store) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// ErrUnavailable is a convenient transient failure for tests.
var ErrUnavailable = errors.New("object store unavailable")
