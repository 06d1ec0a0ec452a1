package migrate

import (
	"context"
	"testing"
)

func TestExtractUp(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"no markers", "CREATE TABLE a (id INT);", "CREATE TABLE a (id INT);"},
		{"up only", "-- +migrate Up\nCREATE TABLE b (id INT);", "\nCREATE TABLE b (id INT);"},
		{"up and down", "-- +migrate Up\nCREATE TABLE c (id INT);\n-- +migrate Down\nDROP TABLE c;", "\nCREATE TABLE c (id INT);\n"},
	}
	for _, tc := range cases {
		if got := ExtractUp(tc.content); got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if err := Apply(context.Background(), nil, nil, "", nil); err == nil {
		t.Fatalf("expected error for nil db")
	}
}
