package miniofs_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"

	"github.com/hydroperx/wwwfs"
	"github.com/hydroperx/wwwfs/fstest"
	"github.com/hydroperx/wwwfs/miniofs"
)

// newLiveRoot connects to the endpoint named by MINIOFS_TEST_ENDPOINT and
// returns roots under a per-run bucket, one fresh prefix per call. The
// integration tests are skipped when the variable is unset.
func newLiveRoot(t *testing.T) fstest.NewRootFunc {
	t.Helper()
	endpoint := os.Getenv("MINIOFS_TEST_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIOFS_TEST_ENDPOINT not set; skipping object-storage integration tests")
	}
	accessKey := os.Getenv("MINIOFS_TEST_ACCESS_KEY")
	if accessKey == "" {
		accessKey = "minioadmin"
	}
	secretKey := os.Getenv("MINIOFS_TEST_SECRET_KEY")
	if secretKey == "" {
		secretKey = "minioadmin"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
	})
	require.NoError(t, err)

	ctx := context.Background()
	bucket := fmt.Sprintf("wwwfs-test-%d", time.Now().UnixNano())
	require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	t.Cleanup(func() {
		_ = client.RemoveBucketWithOptions(context.Background(), bucket, minio.RemoveBucketOptions{ForceDelete: true})
	})

	var seq int
	return func(_ *testing.T) wwwfs.Directory {
		seq++
		return miniofs.New(client, bucket, fmt.Sprintf("run-%03d", seq))
	}
}

func TestConformance(t *testing.T) {
	fstest.TestSuite(t, newLiveRoot(t))
}

func TestMatchesReference(t *testing.T) {
	fstest.TestMatchesReference(t, newLiveRoot(t))
}
