package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIssueKey(t *testing.T) {
	cases := []struct {
		key   string
		valid bool
	}{
		{"DT-1", true},
		{"ABC-99999", true},
		{"a1-2", true},
		{"dt_1", false},
		{"-5", false},
		{"DT", false},
		{"DT-", false},
		{"", false},
		{"DT-1-2", false},
		{"DT 1", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.valid, ValidIssueKey(tc.key), "key %q", tc.key)
	}
}
