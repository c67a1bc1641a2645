// Copyright DTMBX, 2026. All rights reserved.

package blob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/DTMBX/Evident-sub002/pkg/types"
)

func TestWriteComputesContentAddress(t *testing.T) {
	s := NewStore(t.TempDir())

	res, err := s.Write([]byte("hello"), types.BlobRaw)
	if err != nil {
		t.Fatal(err)
	}

	// sha256("hello")
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if res.SHA256 != want {
		t.Errorf("SHA256 = %s, want %s", res.SHA256, want)
	}
	if filepath.Base(res.Path) != want+".bin" {
		t.Errorf("path = %s, want basename %s.bin", res.Path, want)
	}

	data, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("stored bytes = %q", data)
	}
}

func TestWriteDedup(t *testing.T) {
	s := NewStore(t.TempDir())

	first, err := s.Write([]byte("same bytes"), types.BlobCanonical)
	if err != nil {
		t.Fatal(err)
	}
	info1, err := os.Stat(first.Path)
	if err != nil {
		t.Fatal(err)
	}

	second, err := s.Write([]byte("same bytes"), types.BlobCanonical)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("second write = %+v, want %+v", second, first)
	}

	// The file must not have been rewritten.
	info2, err := os.Stat(second.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !info2.ModTime().Equal(info1.ModTime()) {
		t.Error("blob file was rewritten on duplicate write")
	}

	entries, err := os.ReadDir(filepath.Dir(first.Path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("blob directory holds %d files, want 1", len(entries))
	}
}

func TestWriteKindsPartition(t *testing.T) {
	s := NewStore(t.TempDir())

	raw, err := s.Write([]byte("payload"), types.BlobRaw)
	if err != nil {
		t.Fatal(err)
	}
	canon, err := s.Write([]byte("payload"), types.BlobCanonical)
	if err != nil {
		t.Fatal(err)
	}

	if raw.SHA256 != canon.SHA256 {
		t.Error("identical bytes should hash identically across kinds")
	}
	if raw.Path == canon.Path {
		t.Error("kinds must partition the on-disk layout")
	}
}

func TestWriteInvalidKindPanics(t *testing.T) {
	s := NewStore(t.TempDir())

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for undefined blob kind")
		}
	}()
	s.Write([]byte("x"), types.BlobKind("bogus"))
}

func TestReadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	res, err := s.Write([]byte("round trip"), types.BlobJSON)
	if err != nil {
		t.Fatal(err)
	}
	data, err := s.Read(types.BlobJSON, res.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "round trip" {
		t.Errorf("Read = %q", data)
	}
}

func TestReadMissingBlob(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.Read(types.BlobRaw, "deadbeef"); err == nil {
		t.Fatal("expected error for missing blob")
	}
}
