package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/sentinel"
)

func TestKeys(t *testing.T) {
	claimant := id.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	session := id.SessionID(uuid.MustParse("22222222-2222-2222-2222-222222222222"))
	claim := id.AssetClaimID(uuid.MustParse("33333333-3333-3333-3333-333333333333"))
	at := time.UnixMilli(1700000000123)

	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222/death_certificate_1700000000123_cert.pdf",
		DocumentKey(claimant, session, "death_certificate", at, "cert.pdf"))
	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/receipts/33333333-3333-3333-3333-333333333333_loan_receipt.png",
		ReceiptKey(claimant, claim, "loan receipt.png"))
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "passwd", SanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "scan_1_.jpg", SanitizeFileName(`C:\docs\scan(1).jpg`))
	assert.Equal(t, "file", SanitizeFileName(""))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	loc, err := store.Put(ctx, "a/b.pdf", "application/pdf", []byte("pdf"))
	require.NoError(t, err)
	data, err := store.Get(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), data)

	_, err = store.Get(ctx, "mem://missing")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	store.FailWith(errors.New("disk full"))
	_, err = store.Put(ctx, "c", "image/png", nil)
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	api := &fakeS3{objects: map[string][]byte{}}
	store := newS3WithClient(api, "evidence")

	loc, err := store.Put(ctx, "u/s/doc.pdf", "application/pdf", []byte("content"))
	require.NoError(t, err)
	assert.Equal(t, "s3://evidence/u/s/doc.pdf", loc)

	data, err := store.Get(ctx, loc)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)

	_, err = store.Get(ctx, "s3://evidence/nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = store.Get(ctx, "http://elsewhere")
	assert.Error(t, err)

	api.putErr = errors.New("throttled")
	_, err = store.Put(ctx, "k", "image/png", nil)
	assert.ErrorContains(t, err, "throttled")
}
