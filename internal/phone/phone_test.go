package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"local mobile", "0501234567", "+972501234567"},
		{"already international", "+972501234567", "+972501234567"},
		{"country code without plus", "972501234567", "+972501234567"},
		{"formatted mobile", " 050-123 45.67 ", "+972501234567"},
		{"parentheses and slash", "(03)/123-4567", "+97231234567"},
		{"landline nine digits", "031234567", "+97231234567"},
		{"landline ten digits", "0771234567", "+972771234567"},
		{"bare mobile without trunk", "501234567", "+972501234567"},
		{"foreign international", "+14155550100", "+14155550100"},
		{"short garbage", "12345", "12345"},
		{"letters", "abc", "abc"},
		{"empty", "", ""},
		{"whitespace only", " \t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"0501234567", "+972501234567", "972501234567", "501234567",
		"031234567", "+14155550100", "abc", "", "05-0", "0 5 0 1 2 3 4 5 6 7",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestLooksLikePhone(t *testing.T) {
	assert.True(t, LooksLikePhone("+972501234567"))
	assert.True(t, LooksLikePhone("050-1234567"))
	assert.True(t, LooksLikePhone("+14155550100"))
	assert.False(t, LooksLikePhone("abc"))
	assert.False(t, LooksLikePhone(""))
	assert.False(t, LooksLikePhone("12345"))
	assert.False(t, LooksLikePhone("+12"))
}

func TestCustomPlan(t *testing.T) {
	plan, err := NewPlan("44", "7")
	require.NoError(t, err)

	assert.Equal(t, "+44712345678", plan.Normalize("071-234-5678"))
	assert.Equal(t, "+44712345678", plan.Normalize("712345678"))
	assert.True(t, plan.LooksLikePhone("0712345678"))

	_, err = NewPlan("+44", "7")
	assert.Error(t, err)
	_, err = NewPlan("44", "")
	assert.Error(t, err)
}
