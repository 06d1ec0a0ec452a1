package blob

import (
	"context"
	"testing"

	"pepplus/internal/infra/blob/s3"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  Config
		want Driver
	}{
		{Config{Driver: DriverMemory}, DriverMemory},
		{Config{FSRoot: t.TempDir()}, DriverFilesystem},
		{Config{Driver: DriverS3, S3: s3.Config{Bucket: "b", AccessKeyID: "k", SecretAccessKey: "s"}}, DriverS3},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %s: %v", tc.want, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("expected %s, got %s", tc.want, store.Driver())
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(context.Background(), Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected s3 config error without bucket")
	}
}
