package file

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

const (
	LocalFileStorage = "local"
	FTPFileStorage   = "ftp"
	S3FileStorage    = "s3"
)

const (
	TSV = "tsv"
	CSV = "csv"
)

const (
	OKFlag = "OK"
	MD5    = "MD5"
	SHA1   = "SHA1"
	SHA256 = "SHA256"
	SHA512 = "SHA512"
)

//FileDescriptor describes one source extract
type FileDescriptor struct {
	FileStore      FileStorage
	FileName       string
	Type           string
	FieldSeparator string
	//Checksum names the side-file check verified before reading, empty to skip
	Checksum string
}

func (fd *FileDescriptor) String() string {
	return fmt.Sprintf("%s://%s", fd.FileStore, fd.FileName)
}

//FileStorage is where source extracts live
type FileStorage interface {
	Exists(ctx context.Context, fileName string) (ok bool, err error)
	Open(ctx context.Context, fileName string) (reader io.ReadCloser, err error)
}

type ChecksumVerifier interface {
	Verify(ctx context.Context, fd FileDescriptor) (bool, error)
}

//Count returns the number of data lines in the file, excluding the header line
func Count(ctx context.Context, fd FileDescriptor) (int64, error) {
	reader, err := fd.FileStore.Open(ctx, fd.FileName)
	if err != nil {
		return -1, err
	}
	defer reader.Close()
	bufReader := bufio.NewReader(reader)
	count := int64(0)
	_, err = bufReader.ReadString('\n') //header
	if err == io.EOF {
		return count, nil
	}
	if err != nil {
		return -1, err
	}
	for {
		line, err := bufReader.ReadString('\n')
		if err != nil && err != io.EOF {
			return -1, err
		}
		if err == io.EOF {
			if line != "" {
				count++
			}
			return count, nil
		}
		count++
	}
}
