package badger

// Stores bundles every BadgerDB-backed store over one shared Backend.
type Stores struct {
	Backend  *Backend
	Vectors  *VectorIndex
	Metadata *MetadataStore
	Objects  *ObjectStore
	Cursors  *CursorStore
}

// Open opens a Backend at path (or in memory) and builds all stores on it.
func Open(path string, inMemory bool, dimension int) (*Stores, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Backend:  backend,
		Vectors:  NewVectorIndex(backend, dimension),
		Metadata: NewMetadataStore(backend),
		Objects:  NewObjectStore(backend),
		Cursors:  NewCursorStore(backend),
	}, nil
}

// Close closes the shared Backend.
func (s *Stores) Close() error {
	return s.Backend.Close()
}
