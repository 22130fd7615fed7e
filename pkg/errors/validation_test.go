package errors

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"uuid", "6f1c1d0e-2b7a-4d8e-9d43-5b1f2c3a4d5e", false},
		{"short", "ws1", false},
		{"productboard id", "feat_01HZX", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 129), true},
		{"path traversal", "a..b", true},
		{"slash", "ws/1", true},
		{"backslash", `ws\1`, true},
		{"space", "ws 1", true},
		{"control char", "ws\x01", true},
		{"null byte", "ws\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWorkspaceID(t *testing.T) {
	err := ValidateWorkspaceID("")
	if !Is(err, ErrCodeInvalidWorkspace) {
		t.Errorf("ValidateWorkspaceID(\"\") code = %v, want %v", GetCode(err), ErrCodeInvalidWorkspace)
	}
	if err := ValidateWorkspaceID("ws1"); err != nil {
		t.Errorf("ValidateWorkspaceID(ws1) = %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"https://api.productboard.com", false},
		{"http://localhost:8080/path", false},
		{"", true},
		{"ftp://example.com", true},
		{"https://", true},
		{"javascript:alert(1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOrganization(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"contoso", false},
		{"my-org-1", false},
		{"a", false},
		{"", true},
		{"-leading", true},
		{"trailing-", true},
		{"has space", true},
		{strings.Repeat("a", 51), true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateOrganization(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOrganization(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"project only", "Fabrikam", false},
		{"nested", `Fabrikam\Web\Sprint 1`, false},

		{"empty", "", true},
		{"leading backslash", `\Fabrikam`, true},
		{"trailing backslash", `Fabrikam\`, true},
		{"double backslash", `Fabrikam\\Web`, true},
		{"dot node", `Fabrikam\..`, true},
		{"reserved char", `Fabrikam\Web:1`, true},
		{"forward slash", "Fabrikam/Web", true},
		{"control char", "Fabrikam\x00", true},
		{"node too long", "Fabrikam\\" + strings.Repeat("n", 256), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}
