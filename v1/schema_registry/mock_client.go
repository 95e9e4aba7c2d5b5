package schema_registry

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// MockClient is an in-memory Registry for tests and local runs without a
// registry server. Identical schema text gets the same id across subjects,
// as on a real registry.
type MockClient struct {
	mu       sync.Mutex
	nextID   int
	schemas  map[int]Metadata
	ids      map[string]int
	subjects map[string][]int
	failWith error
	calls    map[string]int
}

// NewMockClient returns an empty in-memory registry.
func NewMockClient() *MockClient {
	return &MockClient{
		nextID:   1,
		schemas:  make(map[int]Metadata),
		ids:      make(map[string]int),
		subjects: make(map[string][]int),
		calls:    make(map[string]int),
	}
}

// Fail makes every subsequent call return err; nil restores normal operation.
func (m *MockClient) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Calls reports how many times the named method was invoked.
func (m *MockClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockClient) enter(method string) error {
	m.calls[method]++
	return m.failWith
}

// GetSchemaByID implements Registry.
func (m *MockClient) GetSchemaByID(id int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetSchemaByID"); err != nil {
		return "", err
	}
	md, ok := m.schemas[id]
	if !ok {
		return "", &RegistryError{StatusCode: http.StatusNotFound, ErrorCode: codeSchemaNotFound, Message: fmt.Sprintf("schema %d not found", id)}
	}
	return md.Schema, nil
}

// GetLatestSchema implements Registry.
func (m *MockClient) GetLatestSchema(subject string) (*Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetLatestSchema"); err != nil {
		return nil, err
	}
	versions := m.subjects[subject]
	if len(versions) == 0 {
		return nil, &RegistryError{StatusCode: http.StatusNotFound, ErrorCode: codeSubjectNotFound, Message: fmt.Sprintf("subject %s not found", subject)}
	}
	md := m.schemas[versions[len(versions)-1]]
	md.Subject = subject
	md.Version = len(versions)
	return &md, nil
}

// RegisterSchema implements Registry. Registering an already registered
// schema under the same subject returns its id without adding a version.
func (m *MockClient) RegisterSchema(subject, schema, schemaType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RegisterSchema"); err != nil {
		return 0, err
	}

	key := schemaType + ":" + schema
	id, known := m.ids[key]
	if !known {
		id = m.nextID
		m.nextID++
		m.ids[key] = id
		m.schemas[id] = Metadata{ID: id, Schema: schema, Type: schemaType}
	}
	for _, existing := range m.subjects[subject] {
		if existing == id {
			return id, nil
		}
	}
	m.subjects[subject] = append(m.subjects[subject], id)
	return id, nil
}

// CheckCompatibility implements Registry; every schema is compatible.
func (m *MockClient) CheckCompatibility(subject, schema, schemaType string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CheckCompatibility"); err != nil {
		return false, err
	}
	return true, nil
}

// GetSubjects implements Registry.
func (m *MockClient) GetSubjects() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetSubjects"); err != nil {
		return nil, err
	}
	subjects := make([]string, 0, len(m.subjects))
	for s := range m.subjects {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// Factory returns a ClientFactory that always hands out m.
func (m *MockClient) Factory() ClientFactory {
	return func() (Registry, error) { return m, nil }
}
