package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractPublicID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"versioned", "https://res.cloudinary.com/demo/image/upload/v1712345/post-images/abc.webp", "post-images/abc"},
		{"no version", "https://res.cloudinary.com/demo/image/upload/post-images/abc.jpg", "post-images/abc"},
		{"folder named like v", "https://res.cloudinary.com/demo/image/upload/videos/abc.png", "videos/abc"},
		{"no upload segment", "https://example.com/images/abc.png", ""},
		{"nothing after upload", "https://res.cloudinary.com/demo/image/upload/", ""},
		{"garbage", "::not a url", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPublicID(tt.url); got != tt.want {
				t.Errorf("ExtractPublicID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestNewCloudinaryStorage_NotConfigured(t *testing.T) {
	_, err := NewCloudinaryStorage(Config{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("NewCloudinaryStorage() error = %v, want ErrNotConfigured", err)
	}
}

func TestUnconfigured(t *testing.T) {
	s := Unconfigured()
	if _, err := s.UploadImage(context.Background(), strings.NewReader("x"), "post-images", "a.png"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("UploadImage() error = %v, want ErrNotConfigured", err)
	}
	deleted, err := s.DeleteImage(context.Background(), "https://x/upload/post-images/a.png", "post-images")
	if err != nil || deleted {
		t.Errorf("DeleteImage() = %v, %v, want false, nil", deleted, err)
	}
}
