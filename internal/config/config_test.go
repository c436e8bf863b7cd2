package config

import "testing"

func TestParseRoster(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string // "name|email" pairs in order
		wantErr bool
	}{
		{
			name: "named entries",
			raw:  "Tarun <tarun@mm.com>, Harinder <harinder@mm.com>",
			want: []string{"Tarun|tarun@mm.com", "Harinder|harinder@mm.com"},
		},
		{
			name: "bare emails derive names",
			raw:  "roop@mm.com,gurwinder@mm.com",
			want: []string{"Roop|roop@mm.com", "Gurwinder|gurwinder@mm.com"},
		},
		{
			name: "mixed with blanks",
			raw:  " ,Tarun <tarun@mm.com>,, roop@mm.com ",
			want: []string{"Tarun|tarun@mm.com", "Roop|roop@mm.com"},
		},
		{
			name:    "empty roster",
			raw:     " , ",
			wantErr: true,
		},
		{
			name:    "missing email",
			raw:     "Tarun <>",
			wantErr: true,
		},
		{
			name:    "not an email",
			raw:     "Tarun <tarun>",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			editors, err := ParseRoster(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRoster(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRoster(%q) error = %v", tt.raw, err)
			}
			if len(editors) != len(tt.want) {
				t.Fatalf("got %d editors, want %d", len(editors), len(tt.want))
			}
			for i, want := range tt.want {
				got := editors[i].Name + "|" + editors[i].Email
				if got != want {
					t.Errorf("editor[%d] = %q, want %q", i, got, want)
				}
			}
		})
	}
}

func TestRoleCacheTTLDefaults(t *testing.T) {
	cfg := AuthConfig{RoleCacheTTLHours: 0}
	if got := cfg.RoleCacheTTL().Hours(); got != 24 {
		t.Fatalf("default TTL = %v hours, want 24", got)
	}
	cfg.RoleCacheTTLHours = 6
	if got := cfg.RoleCacheTTL().Hours(); got != 6 {
		t.Fatalf("TTL = %v hours, want 6", got)
	}
}
