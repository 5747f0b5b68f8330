package interceptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuietLoading(t *testing.T) {
	rules := QuietLoading()

	tests := []struct {
		method string
		url    string
		want   bool
	}{
		{"POST", "https://bot.example.com/conversation/agent-1/conv-1", true},
		{"post", "http://localhost:5500/instruct/chat-completion", true},
		{"GET", "http://localhost:5500/user/me", true},
		{"GET", "http://localhost:5500/conversation/conv-1/dialogs", true},
		{"GET", "http://localhost:5500/logger/conversation/c1/state-log", true},
		{"PUT", "http://localhost:5500/conversation/c1/update-tags", true},
		{"DELETE", "http://localhost:5500/knowledge/vector/docs/data/42", true},
		{"GET", "http://localhost:5500/agent-tasks", false},
		{"DELETE", "http://localhost:5500/conversation/c1", false},
		{"PATCH", "http://localhost:5500/conversation/c1/x", false},
		{"POST", "/conversation/agent-1/conv-1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rules.Match(tt.method, tt.url), "%s %s", tt.method, tt.url)
	}
}

func TestQuietErrors(t *testing.T) {
	rules := QuietErrors()

	tests := []struct {
		method string
		url    string
		want   bool
	}{
		{"DELETE", "http://localhost:5500/conversation/c1", true},
		{"PUT", "http://localhost:5500/user", true},
		{"PUT", "http://localhost:5500/role", true},
		{"POST", "http://localhost:5500/refresh-agents", true},
		{"POST", "http://localhost:5500/conversation/agent-1/conv-1", false},
		{"GET", "http://localhost:5500/user/me", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rules.Match(tt.method, tt.url), "%s %s", tt.method, tt.url)
	}
	assert.Equal(t, 0, rules.Len("get"))
}

func TestRuleSetsAreIndependent(t *testing.T) {
	loading, errs := QuietLoading(), QuietErrors()

	// quiet for loading but loud for errors
	u := "http://localhost:5500/conversation/agent-1/conv-1"
	assert.True(t, loading.Match("POST", u))
	assert.False(t, errs.Match("POST", u))

	// loud for loading but quiet for errors
	u = "http://localhost:5500/knowledge/vector/create-collection"
	assert.False(t, loading.Match("POST", u))
	assert.True(t, errs.Match("POST", u))
}

func TestNilRuleSet(t *testing.T) {
	var rs *RuleSet
	assert.False(t, rs.Match("GET", "http://x/user/me"))
	assert.Equal(t, 0, rs.Len("GET"))
}
