package audio

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	putKey, getKey string
	expires        time.Duration
	err            error
}

func (f *fakePresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.putKey = *in.Key
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.expires = o.Expires
	return &v4.PresignedHTTPRequest{URL: "https://minio.local/" + *in.Bucket + "/" + *in.Key + "?sig=put", Method: "PUT"}, nil
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.getKey = *in.Key
	return &v4.PresignedHTTPRequest{URL: "https://minio.local/" + *in.Bucket + "/" + *in.Key + "?sig=get", Method: "GET"}, nil
}

func TestStorage_NewUpload(t *testing.T) {
	p := &fakePresigner{}
	st := NewWithPresigner(p, "tapes", 0)
	st.now = func() time.Time { return time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC) }

	up, err := st.NewUpload(context.Background(), ".M4A")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^audio/2026/03/09/[0-9a-f-]{36}\.m4a$`), up.Key)
	assert.Equal(t, p.putKey, up.Key)
	assert.Equal(t, "s3://tapes/"+up.Key, up.AudioURI)
	assert.Contains(t, up.UploadURL, "sig=put")
	assert.Equal(t, 15*time.Minute, p.expires)
}

func TestStorage_DownloadURL(t *testing.T) {
	p := &fakePresigner{}
	st := NewWithPresigner(p, "tapes", time.Minute)

	url, err := st.DownloadURL(context.Background(), "audio/2026/03/09/x.m4a")
	require.NoError(t, err)
	assert.Contains(t, url, "sig=get")

	_, err = st.DownloadURL(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidURI)
}

func TestStorage_PresignError(t *testing.T) {
	st := NewWithPresigner(&fakePresigner{err: errors.New("no creds")}, "tapes", time.Minute)

	_, err := st.NewUpload(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presign put")
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestParseURI(t *testing.T) {
	bucket, key, err := ParseURI("s3://tapes/audio/2026/01/01/a.m4a")
	require.NoError(t, err)
	assert.Equal(t, "tapes", bucket)
	assert.Equal(t, "audio/2026/01/01/a.m4a", key)

	for _, bad := range []string{"", "file:///tmp/a.m4a", "s3://tapes", "s3:///key"} {
		_, _, err := ParseURI(bad)
		assert.ErrorIs(t, err, ErrInvalidURI, bad)
	}
}
