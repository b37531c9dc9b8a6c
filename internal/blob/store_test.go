package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drivers(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"fs":     fs,
		"memory": NewMemory(),
		"s3":     &S3{client: newFakeS3(), bucket: "archive"},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			key := Key("proj", "13919428", "PRIMARY", "vp_grow.dat")
			info, err := store.Put(ctx, key, strings.NewReader("growth"), PutOptions{
				ContentType: "text/plain",
				Metadata:    map[string]string{"stage": "Forward"},
			})
			require.NoError(t, err)
			assert.Equal(t, key, info.Key)
			assert.EqualValues(t, 6, info.Size)

			got, rc, err := store.Get(ctx, key)
			require.NoError(t, err)
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			assert.Equal(t, "growth", string(b))
			assert.Equal(t, "text/plain", got.ContentType)
			assert.Equal(t, "Forward", got.Metadata["stage"])

			head, err := store.Head(ctx, key)
			require.NoError(t, err)
			assert.EqualValues(t, 6, head.Size)
		})
	}
}

func TestStorePutIsCreateOnly(t *testing.T) {
	ctx := context.Background()
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Put(ctx, "a/b", strings.NewReader("1"), PutOptions{})
			require.NoError(t, err)
			_, err = store.Put(ctx, "a/b", strings.NewReader("2"), PutOptions{})
			assert.ErrorIs(t, err, ErrExists)
		})
	}
}

func TestStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"p2/x", "p1/b", "p1/a"} {
				_, err := store.Put(ctx, k, strings.NewReader(k), PutOptions{})
				require.NoError(t, err)
			}
			infos, err := store.List(ctx, "p1/")
			require.NoError(t, err)
			var keys []string
			for _, i := range infos {
				keys = append(keys, i.Key)
			}
			assert.Equal(t, []string{"p1/a", "p1/b"}, keys)

			ok, err := store.Delete(ctx, "p1/a")
			require.NoError(t, err)
			assert.True(t, ok)

			_, err = store.Head(ctx, "p1/a")
			assert.ErrorIs(t, err, ErrNotFound)
			_, _, err = store.Get(ctx, "p1/a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", " ", "/abs", "a/../../b"} {
				_, err := store.Put(ctx, key, strings.NewReader(""), PutOptions{})
				assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
			}
		})
	}
}

func TestDeleteMissing(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	for _, store := range []Store{fs, NewMemory()} {
		ok, err := store.Delete(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok, store.Driver())
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cfg     Config
		want    Driver
		wantErr error
	}{
		{name: "default is fs", cfg: Config{Root: t.TempDir()}, want: DriverFilesystem},
		{name: "memory", cfg: Config{Driver: DriverMemory}, want: DriverMemory},
		{name: "s3 without bucket", cfg: Config{Driver: DriverS3}, wantErr: ErrBucketRequired},
		{name: "unknown", cfg: Config{Driver: "tape"}, wantErr: ErrUnknownDriver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(ctx, tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, store.Driver())
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STANDPROJ_BLOB_DRIVER", "s3")
	t.Setenv("STANDPROJ_S3_BUCKET", "yields")
	t.Setenv("STANDPROJ_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("STANDPROJ_S3_PATH_STYLE", "true")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverS3, cfg.Driver)
	assert.Equal(t, "yields", cfg.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.PathStyle)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("STANDPROJ_BLOB_DRIVER", "")
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, cfg.Driver)
}

func TestConfigFromEnvRejectsBadBool(t *testing.T) {
	t.Setenv("STANDPROJ_S3_PATH_STYLE", "maybe")
	_, err := ConfigFromEnv()
	assert.ErrorContains(t, err, "parse blob env")
}
