package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/theater-qr-provisioning/internal/config"
)

func TestIndexWithoutRedisLoadsEveryTime(t *testing.T) {
	x := NewIndex(nil, config.CacheConfig{IndexPrefix: "qr:index", GenPrefix: "cache:gen"}, 0)
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"Screen 1", "Canteen"}, nil
	}
	for i := 0; i < 2; i++ {
		set, err := x.Provisioned(context.Background(), 7, load)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := set["Canteen"]; !ok || len(set) != 2 {
			t.Fatalf("set = %v", set)
		}
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if err := x.Invalidate(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
}

func TestIndexLoadError(t *testing.T) {
	x := NewIndex(nil, config.CacheConfig{}, 0)
	boom := errors.New("db down")
	_, err := x.Provisioned(context.Background(), 1, func(context.Context) ([]string, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestKeys(t *testing.T) {
	cfg := config.CacheConfig{IndexPrefix: "qr:index", GenPrefix: "cache:gen"}
	x := NewIndex(nil, cfg, 0)
	if got := x.setKey(42); got != "qr:index:42" {
		t.Fatalf("setKey = %q", got)
	}
	if got := GenerationKey(cfg, 42); got != "cache:gen:42" {
		t.Fatalf("GenerationKey = %q", got)
	}
	if g, err := Generation(context.Background(), nil, cfg, 42); err != nil || g != 0 {
		t.Fatalf("Generation = %d, %v", g, err)
	}
}
