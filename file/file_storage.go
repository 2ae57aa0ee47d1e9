package file

import (
	"context"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
)

//LocalFileSystem reads files from disk, relative to Root when it is set
type LocalFileSystem struct {
	Root string
}

func (fs *LocalFileSystem) String() string {
	return LocalFileStorage
}

func (fs *LocalFileSystem) path(fileName string) string {
	if fs.Root == "" || filepath.IsAbs(fileName) {
		return fileName
	}
	return filepath.Join(fs.Root, fileName)
}

func (fs *LocalFileSystem) Exists(ctx context.Context, fileName string) (bool, error) {
	_, err := os.Stat(fs.path(fileName))
	if err != nil && os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *LocalFileSystem) Open(ctx context.Context, fileName string) (io.ReadCloser, error) {
	return os.Open(fs.path(fileName))
}

type FTPFileSystem struct {
	Host        string
	Port        int
	User        string
	Password    string
	ConnTimeout time.Duration
}

func (fs *FTPFileSystem) String() string {
	return fmt.Sprintf("%s://%s:%d", FTPFileStorage, fs.Host, fs.Port)
}

func (fs *FTPFileSystem) connect(ctx context.Context) (*ftp.ServerConn, error) {
	port := fs.Port
	if port == 0 {
		port = 21
	}
	timeout := fs.ConnTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	c, err := ftp.Dial(fmt.Sprintf("%s:%d", fs.Host, port), ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, err
	}
	if err = c.Login(fs.User, fs.Password); err != nil {
		c.Quit()
		return nil, err
	}
	return c, nil
}

func (fs *FTPFileSystem) Exists(ctx context.Context, fileName string) (bool, error) {
	c, err := fs.connect(ctx)
	if err != nil {
		return false, err
	}
	defer c.Quit()

	_, err = c.FileSize(fileName)
	if err == nil {
		return true, nil
	}
	if e, ok := err.(*textproto.Error); ok && e.Code == ftp.StatusFileUnavailable {
		return false, nil
	}
	return false, err
}

//Open keeps the control connection until the returned reader is closed
func (fs *FTPFileSystem) Open(ctx context.Context, fileName string) (io.ReadCloser, error) {
	c, err := fs.connect(ctx)
	if err != nil {
		return nil, err
	}
	r, err := c.Retr(fileName)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return &ftpReader{Response: r, conn: c}, nil
}

type ftpReader struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpReader) Close() error {
	err := r.Response.Close()
	if e := r.conn.Quit(); err == nil {
		err = e
	}
	return err
}

//S3API is the part of *s3.Client used for reading extracts
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

//S3FileSystem reads objects of one bucket; file names are keys under Prefix
type S3FileSystem struct {
	Bucket string
	Prefix string
	Client S3API
}

//NewS3FileSystem builds a client from the default AWS credential chain
func NewS3FileSystem(ctx context.Context, bucket, prefix, region, endpoint string) (*S3FileSystem, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3FileSystem{Bucket: bucket, Prefix: prefix, Client: client}, nil
}

func (fs *S3FileSystem) String() string {
	return fmt.Sprintf("%s://%s", S3FileStorage, fs.Bucket)
}

func (fs *S3FileSystem) key(fileName string) string {
	if fs.Prefix == "" {
		return strings.TrimPrefix(fileName, "/")
	}
	return strings.TrimSuffix(fs.Prefix, "/") + "/" + strings.TrimPrefix(fileName, "/")
}

func (fs *S3FileSystem) Exists(ctx context.Context, fileName string) (bool, error) {
	_, err := fs.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(fs.Bucket),
		Key:    aws.String(fs.key(fileName)),
	})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	var nk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nk) {
		return false, nil
	}
	return false, errors.Wrapf(err, "head s3 object %v", fs.key(fileName))
}

func (fs *S3FileSystem) Open(ctx context.Context, fileName string) (io.ReadCloser, error) {
	out, err := fs.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(fs.Bucket),
		Key:    aws.String(fs.key(fileName)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetch s3 object %v", fs.key(fileName))
	}
	return out.Body, nil
}
