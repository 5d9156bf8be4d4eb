package supervisor

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []string
		wantErr bool
	}{
		{
			name:    "simple command",
			command: "open-webui serve",
			want:    []string{"open-webui", "serve"},
		},
		{
			name:    "double quoted argument",
			command: `run "a b" c`,
			want:    []string{"run", "a b", "c"},
		},
		{
			name:    "single quoted argument",
			command: `sh -c 'echo hi'`,
			want:    []string{"sh", "-c", "echo hi"},
		},
		{
			name:    "escaped space",
			command: `run a\ b`,
			want:    []string{"run", "a b"},
		},
		{
			name:    "extra whitespace",
			command: "  run   now  ",
			want:    []string{"run", "now"},
		},
		{
			name:    "unclosed quote",
			command: `run "broken`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.command)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseCommand(%q) = %v, want %v", tt.command, got, tt.want)
			}
		})
	}
}
