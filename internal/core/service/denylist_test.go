package service

import "testing"

func TestDenylist_Blocks(t *testing.T) {
	d := NewDenylist(DefaultDeniedTables)

	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM users", true},
		{"select * from USERS where id = 1", true},
		{"SELECT * FROM Users;", true},
		{"users", true},
		{"SELECT name FROM \"users\"", true},
		{"SELECT * FROM main.users", true},
		{"SELECT * FROM my_users_table", false},
		{"SELECT * FROM users_archive", false},
		{"SELECT * FROM _users_", false},
		{"SELECT * FROM superusers", false},
		{"SELECT * FROM items", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := d.Blocks(tt.query); got != tt.want {
				t.Errorf("Blocks(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestDenylist_CaseFolding(t *testing.T) {
	d := NewDenylist(DefaultDeniedTables)

	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM uSeRs", true},
		{"SELECT 'uſers'", false},      // U+017F upper-cases to ASCII S
		{"SELECT 'USEＲS'", false},      // fullwidth R is not R
		{"SELECT * FROM ūsers", false}, // different letter
	}
	for _, tt := range tests {
		if got := d.Blocks(tt.query); got != tt.want {
			t.Errorf("Blocks(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}

	k := NewDenylist([]string{"kb", "Ärzte"})
	if k.Blocks("SELECT * FROM \u212Ab") {
		t.Error("Kelvin sign must not match k")
	}
	if !k.Blocks("SELECT * FROM KB") {
		t.Error("KB should match kb")
	}
	if !k.Blocks("SELECT * FROM ärzte") || !k.Blocks("SELECT * FROM ÄRZTE") {
		t.Error("non-ASCII letters fold among themselves")
	}
}

func TestDenylist_CustomWords(t *testing.T) {
	d := NewDenylist([]string{" secrets ", "", "api.keys"})

	if got := d.Words(); len(got) != 2 || got[0] != "secrets" || got[1] != "api.keys" {
		t.Fatalf("Words() = %v", got)
	}
	if !d.Blocks("SELECT * FROM secrets") {
		t.Error("secrets should be blocked")
	}
	if d.Blocks("SELECT * FROM users") {
		t.Error("users is not in the custom list")
	}
	// The dot is matched literally.
	if d.Blocks("SELECT * FROM apixkeys") {
		t.Error("metacharacters must be quoted")
	}
	if !d.Blocks("SELECT * FROM api.keys") {
		t.Error("api.keys should be blocked")
	}
}

func TestDenylist_Empty(t *testing.T) {
	var nilList *Denylist
	if nilList.Blocks("SELECT * FROM users") {
		t.Error("nil denylist should block nothing")
	}
	if NewDenylist(nil).Blocks("SELECT * FROM users") {
		t.Error("empty denylist should block nothing")
	}
}
