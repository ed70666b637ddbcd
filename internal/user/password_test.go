package user

import "testing"

func TestHashPasswordVerifiesCorrectly(t *testing.T) {
	hash, salt, err := hashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}

	ok, err := verifyPassword("correct horse battery staple", salt, hash)
	if err != nil {
		t.Fatalf("verifyPassword: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	hash, salt, err := hashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}

	ok, err := verifyPassword("wrong password", salt, hash)
	if err != nil {
		t.Fatalf("verifyPassword: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched password to fail verification")
	}
}

func TestHashPasswordSaltsDistinctly(t *testing.T) {
	hash1, salt1, _ := hashPassword("same password")
	hash2, salt2, _ := hashPassword("same password")

	if salt1 == salt2 {
		t.Fatal("expected independently generated salts to differ")
	}
	if hash1 == hash2 {
		t.Fatal("expected hashes to differ given distinct salts")
	}
}
