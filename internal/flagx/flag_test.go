package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "auth.json", "-a", ":8080"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-c", "auth.json"},
		},
		{
			name:    "equals form",
			args:    []string{"-config=auth.json", "-a", ":8080"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=auth.json"},
		},
		{
			name:    "order preserved",
			args:    []string{"-a", ":8080", "-r", "720", "-d", "postgres://x"},
			allowed: []string{"-a", "-d"},
			want:    []string{"-a", ":8080", "-d", "postgres://x"},
		},
		{
			name:    "unknown flags dropped",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "next flag not consumed as value",
			args:    []string{"-c", "-config=other.json"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-c", "-config=other.json"},
		},
		{
			name:    "empty",
			args:    []string{},
			allowed: []string{"-c"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	orig := os.Args
	t.Cleanup(func() { os.Args = orig })

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "short", args: []string{"bin", "-c", "a.json"}, want: "a.json"},
		{name: "long", args: []string{"bin", "-config=b.json", "-a", ":1"}, want: "b.json"},
		{name: "absent", args: []string{"bin", "-a", ":1"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			assert.Equal(t, tt.want, JsonConfigFlags())
		})
	}
}
