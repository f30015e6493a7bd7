package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"Valid", "SecurePass12!@", false},
		{"Exactly Min Length", "Abcdefghij1!", false},
		{"Exactly Max Length", "A" + strings.Repeat("b", 125) + "1!", false},
		{"Too Short", "Small1!", true},
		{"Too Long", "A" + strings.Repeat("b", 126) + "1!", true},
		{"No Upper", "securepass12!", true},
		{"No Lower", "SECUREPASS12!", true},
		{"No Digit", "SecurePass!!", true},
		{"No Special", "SecurePass123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	t.Parallel()
	tests := []struct {
		username string
		wantErr  bool
	}{
		{"ada_l", false},
		{"a-b-c", false},
		{"ab", true},
		{strings.Repeat("a", 31), true},
		{"bad name", true},
		{"_ada", true},
		{"ada-", true},
	}
	for _, tt := range tests {
		t.Run(tt.username, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, ValidateUsername(tt.username) != nil)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateEmail("ada@example.com"))
	assert.Error(t, ValidateEmail("ada@"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 250)+"@example.com"))
}

func TestValidateText(t *testing.T) {
	t.Parallel()
	assert.EqualError(t, ValidateText("content", "   ", 10), "content is required")
	assert.EqualError(t, ValidateText("content", strings.Repeat("x", 11), 10), "content must not exceed 10 characters")
	assert.NoError(t, ValidateText("content", "héllo", 5))
	assert.NoError(t, ValidateMaxLength("bio", "", 10))
}

func TestValidateHTTPURL(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateHTTPURL("image", "https://cdn.example.com/a.png"))
	assert.Error(t, ValidateHTTPURL("image", "ftp://example.com/a.png"))
	assert.Error(t, ValidateHTTPURL("image", "not a url"))
}

func TestValidateSkills(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateSkills([]string{"go", "sql"}))
	assert.Error(t, ValidateSkills(make([]string, MaxSkills+1)))
	assert.Error(t, ValidateSkills([]string{""}))
}
