package repositoryquery

import "testing"

func TestToSnake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"User", "user"},
		{"UserProfile", "user_profile"},
		{"HTTPServer", "http_server"},
		{"OAuth2Token", "o_auth_2_token"},
		{"already_snake", "already_snake"},
		{"with-dash and space", "with_dash_and_space"},
		{"*User", "user"},
		{"Box[main.User]", "box_main_user"},
		{"__Trim__", "trim"},
	}

	for _, tt := range tests {
		if got := toSnake(tt.in); got != tt.want {
			t.Errorf("toSnake(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type OrderLine struct{}

func TestNamespaceOf(t *testing.T) {
	if got := namespaceOf[TestUser](); got != "test_user" {
		t.Errorf("TestUser namespace = %q", got)
	}
	if got := namespaceOf[*OrderLine](); got != "order_line" {
		t.Errorf("*OrderLine namespace = %q", got)
	}
	if got := namespaceOf[[]OrderLine](); got != "order_line" {
		t.Errorf("[]OrderLine namespace = %q", got)
	}
	if got := namespaceOf[any](); got != "record" {
		t.Errorf("any namespace = %q", got)
	}
}
