package file

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch/dataset"
)

//xsvReader reads delimited text with a header row into a dataset of string values
type xsvReader struct {
	comma rune
}

func (r *xsvReader) Read(ctx context.Context, fd FileDescriptor) (*dataset.Dataset, error) {
	if fd.FileStore == nil {
		return nil, errors.Errorf("no file storage for %v", fd.FileName)
	}
	if verifier, err := GetChecksumer(fd.Checksum); err != nil {
		return nil, err
	} else if verifier != nil {
		ok, err := verifier.Verify(ctx, fd)
		if err != nil {
			return nil, errors.Wrapf(err, "verify %v", fd.String())
		}
		if !ok {
			return nil, errors.Errorf("checksum verification failed for %v", fd.String())
		}
	}
	reader, err := fd.FileStore.Open(ctx, fd.FileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %v", fd.String())
	}
	defer reader.Close()
	return r.decode(fd.FileName, reader, fd.FieldSeparator)
}

func (r *xsvReader) decode(name string, reader io.Reader, sep string) (*dataset.Dataset, error) {
	cReader := csv.NewReader(bufio.NewReader(reader))
	cReader.Comma = r.comma
	if sep != "" {
		cReader.Comma = []rune(sep)[0]
	}
	header, err := cReader.Read()
	if err == io.EOF {
		return nil, errors.Errorf("%v has no header row", name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %v", name)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	//columns with a blank header are an exported row index and are dropped
	var columns []string
	var positions []int
	seen := map[string]bool{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if seen[h] {
			return nil, errors.Errorf("duplicate column %v in %v", h, name)
		}
		seen[h] = true
		columns = append(columns, h)
		positions = append(positions, i)
	}
	ds := dataset.New(dsName(name), columns)
	for {
		record, err := cReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %v", name)
		}
		row := make(dataset.Row, len(columns))
		for i, col := range columns {
			row[col] = record[positions[i]]
		}
		ds.Append(row)
	}
	return ds, nil
}

//dsName strips directories and extension: data/customer_master_data.csv -> customer_master_data
func dsName(fileName string) string {
	if idx := strings.LastIndexAny(fileName, "/\\"); idx >= 0 {
		fileName = fileName[idx+1:]
	}
	if idx := strings.LastIndex(fileName, "."); idx > 0 {
		fileName = fileName[:idx]
	}
	return fileName
}

//ReadCSV reads a comma separated extract, verifying its checksum first when fd.Checksum is set
func ReadCSV(ctx context.Context, fd FileDescriptor) (*dataset.Dataset, error) {
	return (&xsvReader{comma: ','}).Read(ctx, fd)
}
