package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	valid := []string{
		"public",
		"+user/alice",
		"_user/alice",
		"user/alice@test",
		"plugin/outbox/other.sub/user/bob",
		"user/bob@a.b",
		"science.fiction",
	}
	for _, tg := range valid {
		assert.True(t, Valid(tg), "expected %q to be valid", tg)
	}

	invalid := []string{
		"",
		"+",
		"User/Alice",
		"user//alice",
		"user/alice@",
		"user@a@b",
		"+_user",
		"/user",
		"user/",
		"user alice",
	}
	for _, tg := range invalid {
		assert.False(t, Valid(tg), "expected %q to be invalid", tg)
	}
}

func TestValidOrigin(t *testing.T) {
	assert.True(t, ValidOrigin(""))
	assert.True(t, ValidOrigin("@main"))
	assert.True(t, ValidOrigin("@main.sub"))
	assert.False(t, ValidOrigin("main"))
	assert.False(t, ValidOrigin("@"))
	assert.False(t, ValidOrigin("@Main"))
}

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		in   string
		vis  Visibility
		bare string
	}{
		{"user/alice", Public, "user/alice"},
		{"+user/alice", Protected, "user/alice"},
		{"_user/alice@x", Private, "user/alice@x"},
		{"", Public, ""},
	}
	for _, tt := range tests {
		vis, bare := StripPrefix(tt.in)
		assert.Equal(t, tt.vis, vis, tt.in)
		assert.Equal(t, tt.bare, bare, tt.in)
	}
}

func TestVisibilityOrder(t *testing.T) {
	assert.Less(t, Private, Protected)
	assert.Less(t, Protected, Public)
	assert.Equal(t, "+", Protected.Prefix())
	assert.Equal(t, "_", Private.Prefix())
	assert.Equal(t, "", Public.Prefix())
	assert.Equal(t, "protected", Protected.String())
}

func TestSplitOrigin(t *testing.T) {
	bare, origin := SplitOrigin("user/bob@test")
	assert.Equal(t, "user/bob", bare)
	assert.Equal(t, "@test", origin)

	bare, origin = SplitOrigin("+user/bob")
	assert.Equal(t, "+user/bob", bare)
	assert.Equal(t, "", origin)

	assert.Equal(t, "+user/bob", Local("+user/bob@x"))
	assert.Equal(t, "@x", Origin("+user/bob@x"))
	assert.Equal(t, "user/bob", Path("_user/bob@x"))
}

func TestWithVisibility(t *testing.T) {
	assert.Equal(t, "+user/bob", WithVisibility("_user/bob", Protected))
	assert.Equal(t, "user/bob@x", WithVisibility("+user/bob@x", Public))
	assert.Equal(t, "_user/bob", WithVisibility("user/bob", Private))
}

func TestHasPrefix(t *testing.T) {
	assert.True(t, HasPrefix("user/alice", "user"))
	assert.True(t, HasPrefix("+user/alice", "user"))
	assert.True(t, HasPrefix("_user/alice@x", "+user"))
	assert.True(t, HasPrefix("user", "user"))
	assert.False(t, HasPrefix("username", "user"))
	assert.False(t, HasPrefix("user/alice", ""))
	assert.False(t, HasPrefix("User/alice", "user"))

	assert.True(t, Descends("+user/alice", "+user"))
	assert.False(t, Descends("+user", "+user"))
}

func TestIsPlugin(t *testing.T) {
	assert.True(t, IsPlugin("plugin/comment", ""))
	assert.True(t, IsPlugin("+plugin/origin", "plugin/origin"))
	assert.True(t, IsPlugin("_plugin/origin/pull", "+plugin/origin"))
	assert.False(t, IsPlugin("plugin/originals", "plugin/origin"))
	assert.False(t, IsPlugin("user/plugin", ""))
	assert.False(t, IsPlugin("plugin/comment", "user"))
	assert.False(t, IsPlugin("Plugin/comment", ""))
}

func TestIsMailbox(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"plugin/inbox/user/bob", true},
		{"plugin/inbox/user/bob@x", true},
		{"plugin/outbox/test/user/bob", true},
		{"plugin/outbox/a.b/user/bob", true},
		{"+plugin/inbox/user/bob", false},
		{"_plugin/outbox/test/user/bob", false},
		{"plugin/inbox", false},
		{"plugin/outbox/test", false},
		{"plugin/inboxes/user", false},
		{"user/bob", false},
		{"plugin/inbox/User", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsMailbox(tt.tag), tt.tag)
	}
}

func TestIsMailbox_OriginSuffixIgnored(t *testing.T) {
	tags := []string{
		"plugin/inbox/user/bob",
		"plugin/outbox/test/user/bob",
		"+plugin/inbox/user/bob",
		"user/bob",
		"plugin/outbox/test",
	}
	for _, tg := range tags {
		_, bare := StripPrefix(tg)
		withOrigin := bare + "@x"
		vis, _ := StripPrefix(tg)
		want := IsMailbox(tg)
		assert.Equal(t, want, IsMailbox(vis.Prefix()+withOrigin), tg)
	}
}

func TestSubOrigin(t *testing.T) {
	assert.Equal(t, "@a", SubOrigin("", "@a"))
	assert.Equal(t, "@b", SubOrigin("@b", ""))
	assert.Equal(t, "@b", SubOrigin("@b", "@"))
	assert.Equal(t, "@b.a", SubOrigin("@b", "@a"))
	assert.Equal(t, "", SubOrigin("", ""))
}

func TestIsSubOrigin(t *testing.T) {
	assert.True(t, IsSubOrigin("", "@a"))
	assert.True(t, IsSubOrigin("@a", "@a"))
	assert.True(t, IsSubOrigin("@a", "@a.b"))
	assert.False(t, IsSubOrigin("@a", "@ab"))
	assert.False(t, IsSubOrigin("@a", ""))
}
