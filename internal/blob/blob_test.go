package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/ir"
)

func testModel() *ir.Model {
	m := ir.NewModel()
	m.Add(&ir.TypeDef{Name: "Image", Table: "image"})
	m.Add(&ir.TypeDef{Name: "Pixels", Table: "pixels", Files: "pixels/{id}"})
	m.Add(&ir.TypeDef{Name: "Thumbnail", Table: "thumbnail", Files: "thumbnails/{id}.jpg"})
	return m
}

func TestKeys(t *testing.T) {
	deleted := map[string][]int64{
		"thumbnail": {9},
		"image":     {1, 2},
		"pixels":    {5, 3},
	}
	assert.Equal(t, []string{"pixels/5", "pixels/3", "thumbnails/9.jpg"}, Keys(testModel(), deleted))
	assert.Empty(t, Keys(testModel(), map[string][]int64{"image": {1}}))
}

func TestLocalCleaner(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pixels", "5"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pixels", "5", "plane0"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "thumbnails"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "thumbnails", "9.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "thumbnails", "10.jpg"), []byte("x"), 0o644))

	c := NewLocalCleaner(root, testModel())
	err := c.Clean(context.Background(), map[string][]int64{
		"pixels":    {5, 6},
		"thumbnail": {9},
	})
	require.NoError(t, err, "missing files are not an error")

	assert.NoDirExists(t, filepath.Join(root, "pixels", "5"))
	assert.NoFileExists(t, filepath.Join(root, "thumbnails", "9.jpg"))
	assert.FileExists(t, filepath.Join(root, "thumbnails", "10.jpg"))
}

func TestLocalCleaner_RejectsEscapingKeys(t *testing.T) {
	m := ir.NewModel()
	m.Add(&ir.TypeDef{Name: "Pixels", Table: "pixels", Files: "../{id}"})

	err := NewLocalCleaner(t.TempDir(), m).Clean(context.Background(), map[string][]int64{"pixels": {1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside")
}

func TestLocalCleaner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewLocalCleaner(t.TempDir(), testModel()).Clean(ctx, map[string][]int64{"pixels": {1}})
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeS3 struct {
	calls  []*s3.DeleteObjectsInput
	err    error
	failed []types.Error
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.DeleteObjectsOutput{Errors: f.failed}, nil
}

func objectKeys(in *s3.DeleteObjectsInput) []string {
	keys := make([]string, len(in.Delete.Objects))
	for i, o := range in.Delete.Objects {
		keys[i] = aws.ToString(o.Key)
	}
	return keys
}

func TestS3Cleaner(t *testing.T) {
	fake := &fakeS3{}
	c := NewS3Cleaner(fake, "imaging", "/prod/", testModel())

	err := c.Clean(context.Background(), map[string][]int64{"pixels": {5}, "thumbnail": {9}})
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "imaging", aws.ToString(fake.calls[0].Bucket))
	assert.Equal(t, []string{"prod/pixels/5", "prod/thumbnails/9.jpg"}, objectKeys(fake.calls[0]))
	assert.True(t, aws.ToBool(fake.calls[0].Delete.Quiet))
}

func TestS3Cleaner_Batches(t *testing.T) {
	fake := &fakeS3{}
	c := NewS3Cleaner(fake, "imaging", "", testModel())

	ids := make([]int64, 2500)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	require.NoError(t, c.Clean(context.Background(), map[string][]int64{"pixels": ids}))

	require.Len(t, fake.calls, 3)
	assert.Len(t, fake.calls[0].Delete.Objects, 1000)
	assert.Len(t, fake.calls[2].Delete.Objects, 500)
	assert.Equal(t, "pixels/2001", objectKeys(fake.calls[2])[0])
}

func TestS3Cleaner_NothingToDelete(t *testing.T) {
	fake := &fakeS3{}
	require.NoError(t, NewS3Cleaner(fake, "imaging", "", testModel()).
		Clean(context.Background(), map[string][]int64{"image": {1}}))
	assert.Empty(t, fake.calls)
}

func TestS3Cleaner_Errors(t *testing.T) {
	fake := &fakeS3{failed: []types.Error{{Key: aws.String("pixels/5"), Message: aws.String("AccessDenied")}}}
	err := NewS3Cleaner(fake, "imaging", "", testModel()).Clean(context.Background(), map[string][]int64{"pixels": {5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete pixels/5: AccessDenied")

	fake = &fakeS3{err: errors.New("no route")}
	err = NewS3Cleaner(fake, "imaging", "", testModel()).Clean(context.Background(), map[string][]int64{"pixels": {5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("delete objects in %s", "imaging"))
}

func TestNewS3Client(t *testing.T) {
	client, err := NewS3Client(context.Background(), S3Config{
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "test",
		SecretKey: "test",
		PathStyle: true,
	})
	require.NoError(t, err)

	opts := client.Options()
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://localhost:9000", aws.ToString(opts.BaseEndpoint))
	assert.Equal(t, "us-east-1", opts.Region)
}
