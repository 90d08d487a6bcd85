package utils

import (
	"errors"
	"testing"

	"propchat/internal/constants"
)

func TestValidateChatFile(t *testing.T) {
	cases := []struct {
		name string
		file string
		size int64
		want error
	}{
		{"pdf under limit", "contract.pdf", 1024, nil},
		{"exactly at limit", "photo.JPG", constants.MaxChatFileSize, nil},
		{"one byte over", "photo.png", constants.MaxChatFileSize + 1, ErrFileTooLarge},
		{"disallowed extension", "setup.exe", 10, ErrFileTypeNotAllowed},
		{"no extension", "README", 10, ErrFileTypeNotAllowed},
		{"empty name", "  ", 10, ErrEmptyFilename},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateChatFile(tc.file, tc.size, constants.MaxChatFileSize)
			if tc.want == nil && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"My Contract.pdf":        "My_Contract.pdf",
		"../../etc/passwd":       "passwd",
		`C:\Users\me\photo.png`:  "photo.png",
		".hidden.txt":            "hidden.txt",
		"отчёт.docx":             "docx",
		"floor plan (final).jpg": "floor_plan_final.jpg",
		"":                       "",
	}
	for in, want := range cases {
		if got := SecureFilename(in); got != want {
			t.Errorf("SecureFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidStoredName(t *testing.T) {
	if !ValidStoredName("20240101_100000_ab12cd34_plan.pdf") {
		t.Error("expected plain stored name to be valid")
	}
	for _, bad := range []string{"", "../x", "a/b", `a\b`} {
		if ValidStoredName(bad) {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}
