package membackend

import "github.com/jamiefaye/haywire-sub001/internal/apperr"

// GPATranslator converts a guest physical address to a memory-backend file
// offset. internal/region.Mapper satisfies this.
type GPATranslator interface {
	TranslateGPAToFileOffset(gpa uint64) int64
}

// PhysicalBackend adapts a Backend plus a GPATranslator into
// address.PhysicalReader: reads addressed by guest physical address rather
// than raw file offset.
type PhysicalBackend struct {
	backend    *Backend
	translator GPATranslator
}

// NewPhysicalBackend returns a PhysicalBackend reading through backend,
// translating guest physical addresses via translator.
func NewPhysicalBackend(backend *Backend, translator GPATranslator) *PhysicalBackend {
	return &PhysicalBackend{backend: backend, translator: translator}
}

// Read returns size bytes of guest physical memory starting at gpa,
// satisfying address.PhysicalReader.
func (p *PhysicalBackend) Read(gpa uint64, size int) ([]byte, error) {
	offset := p.translator.TranslateGPAToFileOffset(gpa)
	if offset < 0 {
		return nil, apperr.New(apperr.Unmapped, "gpa not covered by any region")
	}
	return p.backend.ReadOffset(uint64(offset), size)
}
