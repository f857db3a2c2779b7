package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mclient "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"google.golang.org/api/option"
)

func TestObjectKey(t *testing.T) {
	k1 := ObjectKey("venue", "sub-1", "image/png")
	k2 := ObjectKey("venue", "sub-1", "image/png")

	assert.True(t, strings.HasPrefix(k1, "profiles/venue/sub-1/"), k1)
	assert.True(t, strings.HasSuffix(k1, ".png"), k1)
	assert.NotEqual(t, k1, k2)
	assert.True(t, strings.HasSuffix(ObjectKey("member", "s", "image/jpeg"), ".jpg"))
}

func TestAllowedType(t *testing.T) {
	assert.True(t, AllowedType("image/png"))
	assert.True(t, AllowedType("image/jpeg"))
	assert.False(t, AllowedType("image/gif"))
	assert.False(t, AllowedType(""))
	assert.Equal(t, 5242880, MaxPictureBytes)
}

func TestLocal_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, "/uploads/")
	require.NoError(t, err)

	key := "profiles/member/sub-1/a.png"
	url, err := l.Upload(context.Background(), []byte("png-bytes"), "image/png", key)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+key, url)

	got, err := os.ReadFile(filepath.Join(dir, "profiles", "member", "sub-1", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)

	require.NoError(t, l.Delete(context.Background(), key))
	require.NoError(t, l.Delete(context.Background(), key), "deleting twice is fine")
	_, err = os.Stat(filepath.Join(dir, "profiles", "member", "sub-1", "a.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	_, err = l.Upload(context.Background(), []byte("x"), "image/png", "../../etc/passwd")
	require.Error(t, err)
}

func TestFirebaseDownloadURL(t *testing.T) {
	got := firebaseDownloadURL("bucket", "profiles/venue/s/a.png", "tok en")
	assert.Equal(t, "https://firebasestorage.googleapis.com/v0/b/bucket/o/profiles%2Fvenue%2Fs%2Fa.png?alt=media&token=tok+en", got)
}

func TestSafeSearchResult_IsUnsafe(t *testing.T) {
	cases := []struct {
		name string
		in   SafeSearchResult
		want bool
	}{
		{"all unlikely", SafeSearchResult{Adult: "VERY_UNLIKELY", Violence: "UNLIKELY", Racy: "POSSIBLE"}, false},
		{"adult likely", SafeSearchResult{Adult: "LIKELY"}, true},
		{"violence very likely", SafeSearchResult{Violence: "VERY_LIKELY"}, true},
		{"racy likely", SafeSearchResult{Racy: "LIKELY"}, true},
		{"spoof ignored", SafeSearchResult{Spoof: "VERY_LIKELY", Medical: "VERY_LIKELY"}, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.IsUnsafe())
		})
	}
}

func TestSafeSearch_CheckSendsInlineContent(t *testing.T) {
	var gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/images:annotate"), r.URL.Path)

		var body struct {
			Requests []struct {
				Image struct {
					Content string `json:"content"`
				} `json:"image"`
			} `json:"requests"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if assert.Len(t, body.Requests, 1) {
			gotContent = body.Requests[0].Image.Content
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"responses":[{"safeSearchAnnotation":{"adult":"VERY_LIKELY","violence":"UNLIKELY","racy":"POSSIBLE"}}]}`)
	}))
	defer srv.Close()

	ss, err := NewSafeSearch(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	res, err := ss.Check(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("img")), gotContent)
	assert.Equal(t, "VERY_LIKELY", res.Adult)
	assert.True(t, res.IsUnsafe())
}

// S3 integration test against a real MinIO. Run with GO_TEST_INTEGRATION=1.
func TestS3_Integration(t *testing.T) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set GO_TEST_INTEGRATION=1)")
	}

	ctx := context.Background()
	const (
		rootUser     = "root"
		rootPassword = "rootpass"
		bucket       = "profiles"
	)
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image: "docker.io/minio/minio:latest",
			Env: map[string]string{
				"MINIO_ROOT_USER":     rootUser,
				"MINIO_ROOT_PASSWORD": rootPassword,
			},
			Cmd:          []string{"server", "/data"},
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor:   wait.ForListeningPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)
	hostPort := host + ":" + port.Port()

	admin, err := mclient.New(hostPort, &mclient.Options{
		Creds: credentials.NewStaticV4(rootUser, rootPassword, ""),
	})
	require.NoError(t, err)
	require.NoError(t, admin.MakeBucket(ctx, bucket, mclient.MakeBucketOptions{Region: "us-east-1"}))

	s, err := NewS3(ctx, S3Config{
		Endpoint:  "http://" + hostPort,
		AccessKey: rootUser,
		SecretKey: rootPassword,
		Region:    "us-east-1",
		Bucket:    bucket,
	})
	require.NoError(t, err)

	key := ObjectKey("venue", "sub-1", "image/png")
	url, err := s.Upload(ctx, []byte("png-bytes"), "image/png", key)
	require.NoError(t, err)
	assert.Equal(t, "http://"+hostPort+"/"+bucket+"/"+key, url)

	info, err := admin.StatObject(ctx, bucket, key, mclient.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)

	obj, err := admin.GetObject(ctx, bucket, key, mclient.GetObjectOptions{})
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(obj)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", buf.String())

	require.NoError(t, s.Delete(ctx, key))
	_, err = admin.StatObject(ctx, bucket, key, mclient.StatObjectOptions{})
	require.Error(t, err)
}
