// Package fake is an in-memory sigstore.Client for tests.
package fake

import (
	"context"
	"fmt"
	"sync"
)

type Object struct {
	Data        []byte
	ContentType string
}

type Store struct {
	mu      sync.Mutex
	objects map[string]Object

	Err error // returned by Put when set
}

func New() *Store {
	return &Store{objects: map[string]Object{}}
}

func (s *Store) Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucket + "/" + path
	s.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return fmt.Sprintf("https://storage.fake/%s", key), nil
}

// Get returns a stored object, for asserting on uploads.
func (s *Store) Get(bucket, path string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[bucket+"/"+path]
	return o, ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
