package sandbox

import (
	"strings"
	"testing"
)

func TestValidateCode(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{"clean_script", "const n = await cap.mail.list({});\nreturn n.value.length;", true},
		{"eval", "eval('1+1')", false},
		{"function_constructor", "new Function('return 1')()", false},
		{"require", "const fs = require('fs')", false},
		{"dynamic_import", "await import('fs')", false},
		{"process_exit", "process.exit(1)", false},
		{"child_process", "spawn('child_process')", false},
		{"dirname", "console.log(__dirname)", false},
		{"filename", "console.log(__filename)", false},
		{"eval_as_identifier_suffix", "const medieval = 1; return medieval;", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateCode(tt.code)
			if res.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (errors: %v)", res.Valid, tt.valid, res.Errors)
			}
			if !tt.valid && len(res.Errors) == 0 {
				t.Error("invalid code produced no error messages")
			}
			if tt.valid && len(res.Errors) != 0 {
				t.Errorf("valid code produced errors: %v", res.Errors)
			}
		})
	}
}

func TestValidateCodeReportsEveryMatch(t *testing.T) {
	res := ValidateCode("eval('x'); require('fs'); process.exit(0)")
	if res.Valid {
		t.Fatal("expected invalid")
	}
	if len(res.Errors) != 3 {
		t.Errorf("errors = %d, want 3: %v", len(res.Errors), res.Errors)
	}
	for _, e := range res.Errors {
		if !strings.Contains(e, "not allowed") {
			t.Errorf("error message missing reason: %q", e)
		}
	}
}
