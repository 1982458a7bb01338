package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/herbflow/backend/pkg/loader"
)

type fakeBucket struct {
	objects map[string]string
	keys    []string
}

func (f *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Key)
	f.keys = append(f.keys, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString(body))}, nil
}

func TestGetFileBytes(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{"tables/herbs.csv": "Herb_Name\n"}}
	l := NewS3TableFileLoaderWithClient("herbflow", "tables", bucket)

	b, err := l.GetFileBytes(context.Background(), loader.TableFile{ID: "h", FilePath: "herbs.csv"})
	require.NoError(t, err)
	assert.Equal(t, "Herb_Name\n", string(b))
	assert.Equal(t, []string{"tables/herbs.csv"}, bucket.keys)
}

func TestGetFileBytes_NoSuchKey(t *testing.T) {
	l := NewS3TableFileLoaderWithClient("herbflow", "", &fakeBucket{})
	_, err := l.GetFileBytes(context.Background(), loader.TableFile{ID: "p", FilePath: "pathology.csv"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, loader.ErrNotFound))
}
