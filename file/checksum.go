package file

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/pkg/errors"
)

//OKFlagChecksumer verifies an empty file with '.ok' suffix indicating the data file is complete
type OKFlagChecksumer struct {
}

func (ch *OKFlagChecksumer) Verify(ctx context.Context, fd FileDescriptor) (bool, error) {
	fs := fd.FileStore
	ok, err := fs.Exists(ctx, fd.FileName)
	if err != nil || !ok {
		return false, err
	}
	for _, okFile := range sideFiles(fd.FileName, "ok") {
		ok, err = fs.Exists(ctx, okFile)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

//DigestChecksumer verifies a side file holding the hex digest of the data file
type DigestChecksumer struct {
	Alg     string
	newHash func() hash.Hash
}

func (ch *DigestChecksumer) Verify(ctx context.Context, fd FileDescriptor) (bool, error) {
	fs := fd.FileStore
	ok, err := fs.Exists(ctx, fd.FileName)
	if err != nil || !ok {
		return false, err
	}
	checkFile := ""
	for _, f := range sideFiles(fd.FileName, ch.Alg) {
		ok, err = fs.Exists(ctx, f)
		if err != nil {
			return false, err
		}
		if ok {
			checkFile = f
			break
		}
	}
	if checkFile == "" {
		return false, nil
	}

	//expected digest, optionally followed by the file name as sha256sum writes it
	checkReader, err := fs.Open(ctx, checkFile)
	if err != nil {
		return false, err
	}
	defer checkReader.Close()
	buf, err := io.ReadAll(checkReader)
	if err != nil {
		return false, err
	}
	fields := strings.Fields(string(buf))
	if len(fields) == 0 {
		return false, nil
	}
	expected := strings.ToLower(fields[0])

	reader, err := fs.Open(ctx, fd.FileName)
	if err != nil {
		return false, err
	}
	defer reader.Close()
	digest := ch.newHash()
	if _, err = io.Copy(digest, reader); err != nil {
		return false, err
	}
	return expected == fmt.Sprintf("%x", digest.Sum(nil)), nil
}

//sideFiles lists candidate names: data.csv.md5, data.csv.MD5, data.md5, data.MD5
func sideFiles(fileName, ext string) []string {
	lower, upper := strings.ToLower(ext), strings.ToUpper(ext)
	files := []string{fileName + "." + lower, fileName + "." + upper}
	if dotIdx := strings.LastIndex(fileName, "."); dotIdx > 0 && !strings.Contains(fileName[dotIdx:], "/") {
		files = append(files, fileName[0:dotIdx]+"."+lower, fileName[0:dotIdx]+"."+upper)
	}
	return files
}

//GetChecksumer returns the verifier registered for name; an empty name means no check
func GetChecksumer(name string) (ChecksumVerifier, error) {
	switch strings.ToUpper(name) {
	case "":
		return nil, nil
	case OKFlag:
		return &OKFlagChecksumer{}, nil
	case MD5:
		return &DigestChecksumer{Alg: MD5, newHash: md5.New}, nil
	case SHA1:
		return &DigestChecksumer{Alg: SHA1, newHash: sha1.New}, nil
	case SHA256:
		return &DigestChecksumer{Alg: SHA256, newHash: sha256.New}, nil
	case SHA512:
		return &DigestChecksumer{Alg: SHA512, newHash: sha512.New}, nil
	}
	return nil, errors.Errorf("unsupported checksum: %v", name)
}
