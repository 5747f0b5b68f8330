package interceptor

import (
	"regexp"
	"strings"
)

// RuleSet is an ordered list of URL patterns per lowercase HTTP method.
// A request matches when any pattern for its method matches its URL.
type RuleSet struct {
	rules map[string][]*regexp.Regexp
}

// NewRuleSet compiles patterns keyed by HTTP method. It panics on an
// invalid pattern, like regexp.MustCompile.
func NewRuleSet(patterns map[string][]string) *RuleSet {
	rs := &RuleSet{rules: make(map[string][]*regexp.Regexp, len(patterns))}
	for method, list := range patterns {
		m := strings.ToLower(method)
		for _, p := range list {
			rs.rules[m] = append(rs.rules[m], regexp.MustCompile(p))
		}
	}
	return rs
}

// Match reports whether any rule for method matches rawURL.
func (rs *RuleSet) Match(method, rawURL string) bool {
	if rs == nil {
		return false
	}
	for _, re := range rs.rules[strings.ToLower(method)] {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}

// Len returns the number of rules for method.
func (rs *RuleSet) Len(method string) int {
	if rs == nil {
		return 0
	}
	return len(rs.rules[strings.ToLower(method)])
}

// QuietLoading returns the requests that must not raise the loading indicator.
func QuietLoading() *RuleSet {
	return NewRuleSet(map[string][]string{
		"post": {
			`http(s*)://(.*?)/conversation/(.*?)/(.*?)`,
			`http(s*)://(.*?)/agent`,
			`http(s*)://(.*?)/knowledge/vector/(.*?)/page`,
			`http(s*)://(.*?)/knowledge/(.*?)/search`,
			`http(s*)://(.*?)/knowledge/vector/(.*?)/create`,
			`http(s*)://(.*?)/knowledge/document/(.*?)/page`,
			`http(s*)://(.*?)/users`,
			`http(s*)://(.*?)/instruct/chat-completion`,
			`http(s*)://(.*?)/conversation/(.*?)$`,
		},
		"put": {
			`http(s*)://(.*?)/knowledge/vector/(.*?)/update`,
			`http(s*)://(.*?)/conversation/(.*?)/update-message`,
			`http(s*)://(.*?)/conversation/(.*?)/update-tags`,
			`http(s*)://(.*?)/users`,
		},
		"delete": {
			`http(s*)://(.*?)/knowledge/vector/(.*?)/delete-collection`,
			`http(s*)://(.*?)/knowledge/vector/(.*?)/data/(.*?)`,
			`http(s*)://(.*?)/knowledge/vector/(.*?)/data`,
		},
		"get": {
			`http(s*)://(.*?)/setting/(.*?)`,
			`http(s*)://(.*?)/user/me`,
			`http(s*)://(.*?)/plugin/menu`,
			`http(s*)://(.*?)/address/options(.*?)`,
			`http(s*)://(.*?)/conversation/(.*?)/files/(.*?)`,
			`http(s*)://(.*?)/llm-provider/(.*?)/models`,
			`http(s*)://(.*?)/knowledge/vector/collections`,
			`http(s*)://(.*?)/knowledge/vector/(.*?)/exist`,
			`http(s*)://(.*?)/role/options`,
			`http(s*)://(.*?)/role/(.*?)/details`,
			`http(s*)://(.*?)/user/(.*?)/details`,
			`http(s*)://(.*?)/agent/labels`,
			`http(s*)://(.*?)/conversation/state/keys`,
			`http(s*)://(.*?)/logger/instruction/log/keys`,
			`http(s*)://(.*?)/logger/conversation/(.*?)/content-log`,
			`http(s*)://(.*?)/logger/conversation/(.*?)/state-log`,
			`http(s*)://(.*?)/mcp/server-configs`,
			`http(s*)://(.*?)/conversations`,
			`http(s*)://(.*?)/agents`,
			`http(s*)://(.*?)/agent/(.*?)`,
			`http(s*)://(.*?)/conversation/(.*?)`,
			`http(s*)://(.*?)/conversation/(.*?)/dialogs`,
			`http(s*)://(.*?)/conversation/(.*?)/user`,
			`http(s*)://(.*?)/agent/options`,
			`http(s*)://(.*?)/user/me`,
		},
	})
}

// QuietErrors returns the requests whose failures must not raise the global
// error flag. It is maintained separately from QuietLoading.
func QuietErrors() *RuleSet {
	return NewRuleSet(map[string][]string{
		"post": {
			`http(s*)://(.*?)/knowledge/vector/(.*?)/page`,
			`http(s*)://(.*?)/knowledge/(.*?)/search`,
			`http(s*)://(.*?)/knowledge/vector/(.*?)/create`,
			`http(s*)://(.*?)/knowledge/document/(.*?)/page`,
			`http(s*)://(.*?)/knowledge/vector/create-collection`,
			`http(s*)://(.*?)/refresh-agents`,
		},
		"put": {
			`http(s*)://(.*?)/knowledge/vector/(.*?)/update`,
			`http(s*)://(.*?)/role`,
			`http(s*)://(.*?)/user`,
			`http(s*)://(.*?)/conversation/(.*?)/update-message`,
			`http(s*)://(.*?)/conversation/(.*?)/update-tags`,
		},
		"delete": {
			`http(s*)://(.*?)/knowledge/vector/(.*?)/delete-collection`,
			`http(s*)://(.*?)/knowledge/vector/(.*?)/data/(.*?)`,
			`http(s*)://(.*?)/knowledge/vector/(.*?)/data`,
			`http(s*)://(.*?)/conversation/(.*?)`,
		},
	})
}
