package storage

import (
	"crypto/sha1"
	"fmt"
	"testing"
)

func TestSignRequestOmitsEmptyPublicID(t *testing.T) {
	secret := "s3cret"
	got := signRequest("", "1700000000", secret)
	want := fmt.Sprintf("%x", sha1.Sum([]byte("timestamp=1700000000"+secret)))
	if got != want {
		t.Errorf("signature without public_id = %s, want %s", got, want)
	}
}

func TestSignRequestIncludesPublicID(t *testing.T) {
	secret := "s3cret"
	got := signRequest("meals/post_42_0", "1700000000", secret)
	want := fmt.Sprintf("%x", sha1.Sum([]byte("public_id=meals/post_42_0&timestamp=1700000000"+secret)))
	if got != want {
		t.Errorf("signature with public_id = %s, want %s", got, want)
	}
}
