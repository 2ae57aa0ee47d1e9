package file

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch/dataset"
)

//DatasetReader reads a whole extract into memory
type DatasetReader interface {
	Read(ctx context.Context, fd FileDescriptor) (*dataset.Dataset, error)
}

var (
	handlersMu   sync.RWMutex
	fileHandlers = map[string]DatasetReader{}
)

// RegisterFileType register a reader for a file type
func RegisterFileType(ftype string, reader DatasetReader) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	fileHandlers[ftype] = reader
}

// GetDatasetReader get DatasetReader by type
func GetDatasetReader(ftype string) DatasetReader {
	switch ftype {
	case CSV, "":
		return &xsvReader{comma: ','}
	case TSV:
		return &xsvReader{comma: '\t'}
	}
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	return fileHandlers[ftype]
}

//Read dispatches on fd.Type
func Read(ctx context.Context, fd FileDescriptor) (*dataset.Dataset, error) {
	reader := GetDatasetReader(fd.Type)
	if reader == nil {
		return nil, errors.Errorf("unsupported file type: %v", fd.Type)
	}
	return reader.Read(ctx, fd)
}
