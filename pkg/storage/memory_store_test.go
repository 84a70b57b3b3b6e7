package storage

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestMemoryStorePutPresignDelete(t *testing.T) {
	s := NewMemoryStore("http://localhost:9000/closet")
	ctx := context.Background()
	if err := s.Put(ctx, "inst-1/item-1.jpg", strings.NewReader("jpeg"), 4, "image/jpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	url, err := s.PresignGet(ctx, "inst-1/item-1.jpg", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(url, "http://localhost:9000/closet/") {
		t.Fatalf("unexpected url: %s", url)
	}
	if err := s.Delete(ctx, "inst-1/item-1.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Has("inst-1/item-1.jpg") {
		t.Fatalf("expected object removed")
	}
	if _, err := s.PresignGet(ctx, "inst-1/item-1.jpg", time.Minute); err == nil {
		t.Fatalf("expected presign of missing object to fail")
	}
}
