package secret

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// EnvPrefix is prepended to every key looked up by EnvStore.
const EnvPrefix = "SURVEYS_SECRET_"

// EnvStore reads secrets from process environment variables, so deployments
// can inject sink passwords the same way they inject configuration.
// Key "sink-password" maps to SURVEYS_SECRET_SINK_PASSWORD.
//
// Set and Delete only affect the in-process overlay; they never touch the
// real environment.
type EnvStore struct {
	mu      sync.RWMutex
	overlay map[string][]byte
	deleted map[string]bool
	lookup  func(string) (string, bool)
}

// NewEnvStore creates an EnvStore backed by os.LookupEnv.
func NewEnvStore() *EnvStore {
	return &EnvStore{
		overlay: map[string][]byte{},
		deleted: map[string]bool{},
		lookup:  os.LookupEnv,
	}
}

// EnvName returns the environment variable consulted for key.
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(EnvPrefix)
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *EnvStore) Set(key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("secret set: empty key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay[key] = append([]byte(nil), value...)
	delete(s.deleted, key)
	return nil
}

func (s *EnvStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.overlay[key]; ok {
		return append([]byte(nil), v...), nil
	}
	if s.deleted[key] {
		return nil, nil
	}
	if v, ok := s.lookup(EnvName(key)); ok {
		return []byte(v), nil
	}
	return nil, nil
}

func (s *EnvStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overlay, key)
	s.deleted[key] = true
	return nil
}
