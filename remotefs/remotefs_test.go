package remotefs

import (
	"errors"
	"io"
	"net/textproto"
	"testing"

	"github.com/kailas-cloud/flowdex/store"
)

func TestRemotePath(t *testing.T) {
	tests := []struct {
		name    string
		baseDir string
		id      string
		want    string
		wantErr bool
	}{
		{"plain", "base", "a.json", "base/a.json", false},
		{"nested", "base", "a/b/c.json", "base/a/b/c.json", false},
		{"no base", "", "a/b.json", "a/b.json", false},
		{"leading slash", "base", "/a.json", "base/a.json", false},
		{"dot segments collapse", "base", "a/./b/../c.json", "base/a/c.json", false},
		{"traversal stays inside base", "base", "../../etc/passwd", "base/etc/passwd", false},
		{"empty id", "base", "", "", true},
		{"dot id", "base", ".", "", true},
		{"escapes to base", "base", "a/../..", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := remotePath(tt.baseDir, tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("remotePath(%q, %q) error = %v, wantErr %v", tt.baseDir, tt.id, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("remotePath(%q, %q) = %q, want %q", tt.baseDir, tt.id, got, tt.want)
			}
		})
	}
}

func TestParentDirs(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"a.json", nil},
		{"base/a.json", []string{"base"}},
		{"base/a/b/c.json", []string{"base", "base/a", "base/a/b"}},
	}

	for _, tt := range tests {
		got := parentDirs(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("parentDirs(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parentDirs(%q) = %v, want %v", tt.path, got, tt.want)
				break
			}
		}
	}
}

func TestValidateOp_RejectsVersions(t *testing.T) {
	_, err := validateOp("base", store.Op{ID: "a.json", Version: 2})
	if !errors.Is(err, store.ErrVersionUnsupported) {
		t.Fatalf("expected ErrVersionUnsupported, got %v", err)
	}

	if _, err := validateOp("base", store.Op{ID: "a.json"}); err != nil {
		t.Fatalf("unversioned op must pass, got %v", err)
	}
}

func TestClassifyReply(t *testing.T) {
	busy := &textproto.Error{Code: 450, Msg: "file busy"}
	if err := classifyReply("a.json", busy); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("4yz replies are transient, got %v", err)
	}

	denied := &textproto.Error{Code: 550, Msg: "access denied"}
	if err := classifyReply("a.json", denied); errors.Is(err, store.ErrUnavailable) {
		t.Errorf("5yz replies are permanent, got %v", err)
	} else if !errors.Is(err, denied) {
		t.Errorf("server reply must stay in the chain, got %v", err)
	}

	if err := classifyReply("a.json", io.EOF); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("a broken connection is transient, got %v", err)
	}
}

func TestIsSessionLost(t *testing.T) {
	if isSessionLost(&textproto.Error{Code: 550, Msg: "denied"}) {
		t.Error("a server reply means the session still works")
	}
	if !isSessionLost(io.EOF) {
		t.Error("a non-protocol error means the session is gone")
	}
}
