package session

import (
	"strings"
	"testing"
)

func TestPipeline_Validate(t *testing.T) {
	valid := Pipeline{
		Type: "demo",
		Steps: []Step{
			{Name: "collect", Capabilities: []string{CapFacilitation}},
			{Name: "analyze", Needs: []string{"collect"}},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid pipeline, got %v", err)
	}

	cases := []struct {
		name string
		p    Pipeline
		want string
	}{
		{
			name: "missing type",
			p:    Pipeline{Steps: []Step{{Name: "a"}}},
			want: "type is required",
		},
		{
			name: "no steps",
			p:    Pipeline{Type: "demo"},
			want: "at least one step",
		},
		{
			name: "unnamed step",
			p:    Pipeline{Type: "demo", Steps: []Step{{}}},
			want: "has no name",
		},
		{
			name: "reserved name",
			p:    Pipeline{Type: "demo", Steps: []Step{{Name: ReportStep}}},
			want: "reserved",
		},
		{
			name: "duplicate step",
			p:    Pipeline{Type: "demo", Steps: []Step{{Name: "a"}, {Name: "a"}}},
			want: "duplicate step name",
		},
		{
			name: "needs later step",
			p:    Pipeline{Type: "demo", Steps: []Step{{Name: "a", Needs: []string{"b"}}, {Name: "b"}}},
			want: "not an earlier step",
		},
		{
			name: "needs itself",
			p:    Pipeline{Type: "demo", Steps: []Step{{Name: "a", Needs: []string{"a"}}}},
			want: "not an earlier step",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.p.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("expected %q in error, got %v", c.want, err)
			}
		})
	}
}

func TestCatalog_AllPipelinesValid(t *testing.T) {
	catalog := Catalog()
	if len(catalog) < 6 {
		t.Fatalf("expected at least 6 built-in types, got %d", len(catalog))
	}

	for name, p := range catalog {
		if name != p.Type {
			t.Errorf("catalog key %q does not match pipeline type %q", name, p.Type)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("pipeline %s: %v", name, err)
		}
	}
}
