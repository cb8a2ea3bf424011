package eval

import "testing"

func TestRuleEnabled(t *testing.T) {
	tests := []struct {
		name     string
		params   Params
		category string
		rule     string
		level    string
		want     bool
	}{
		{
			name:  "no flags, level error",
			level: "error",
			want:  true,
		},
		{
			name:  "no flags, level ignore",
			level: "ignore",
			want:  false,
		},
		{
			name:   "disable all",
			params: Params{DisableAll: true},
			level:  "error",
			want:   false,
		},
		{
			name:   "disable all with enable by name",
			params: Params{DisableAll: true, Enable: []string{"ruleX"}},
			rule:   "ruleX",
			level:  "ignore",
			want:   true,
		},
		{
			name:     "disable all with enable by category",
			params:   Params{DisableAll: true, EnableCategory: []string{"style"}},
			category: "style",
			level:    "ignore",
			want:     true,
		},
		{
			name:     "disable all ignores disable-category for named rules",
			params:   Params{DisableAll: true, Enable: []string{"ruleX"}, DisableCategory: []string{"style"}},
			category: "style",
			rule:     "ruleX",
			level:    "error",
			want:     true,
		},
		{
			name:   "enable all",
			params: Params{EnableAll: true},
			level:  "ignore",
			want:   true,
		},
		{
			name:   "enable all with disable by name",
			params: Params{EnableAll: true, Disable: []string{"ruleX"}},
			rule:   "ruleX",
			level:  "error",
			want:   false,
		},
		{
			name:     "enable all with disable by category",
			params:   Params{EnableAll: true, DisableCategory: []string{"style"}},
			category: "style",
			level:    "error",
			want:     false,
		},
		{
			name:   "disable by name beats enable by name",
			params: Params{Disable: []string{"ruleX"}, Enable: []string{"ruleX"}},
			rule:   "ruleX",
			level:  "error",
			want:   false,
		},
		{
			name:     "enable by name beats disable by category",
			params:   Params{Enable: []string{"ruleX"}, DisableCategory: []string{"style"}},
			category: "style",
			rule:     "ruleX",
			level:    "ignore",
			want:     true,
		},
		{
			name:     "disable by category beats enable by category",
			params:   Params{DisableCategory: []string{"style"}, EnableCategory: []string{"style"}},
			category: "style",
			level:    "error",
			want:     false,
		},
		{
			name:     "enable by category beats configured level",
			params:   Params{EnableCategory: []string{"style"}},
			category: "style",
			level:    "ignore",
			want:     true,
		},
		{
			name:     "category flags are per rule, not per invocation",
			params:   Params{Enable: []string{"other"}, DisableCategory: []string{"style"}},
			category: "style",
			rule:     "ruleX",
			level:    "error",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.params.RuleEnabled(tt.category, tt.rule, tt.level)
			if got != tt.want {
				t.Errorf("RuleEnabled(%q, %q, %q) = %v, want %v",
					tt.category, tt.rule, tt.level, got, tt.want)
			}

			// The decision is a pure function of its inputs.
			if again := tt.params.RuleEnabled(tt.category, tt.rule, tt.level); again != got {
				t.Error("RuleEnabled not deterministic")
			}
		})
	}
}
