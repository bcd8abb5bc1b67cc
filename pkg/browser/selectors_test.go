package browser

import (
	"strings"
	"testing"
)

func TestAttrSelector(t *testing.T) {
	tests := []struct {
		attr, value, want string
	}{
		{"title", "Nova Receita", `[title="Nova Receita"]`},
		{"placeholder", "Buscar ingrediente...", `[placeholder="Buscar ingrediente..."]`},
		{"placeholder", `Say "hi"`, `[placeholder="Say \"hi\""]`},
		{"title", `a\b`, `[title="a\\b"]`},
	}

	for _, tt := range tests {
		if got := attrSelector(tt.attr, tt.value); got != tt.want {
			t.Errorf("attrSelector(%q, %q) = %s, want %s", tt.attr, tt.value, got, tt.want)
		}
	}
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Meus Alimentos", "'Meus Alimentos'"},
		{"Porções / Unidades", "'Porções / Unidades'"},
		{"it's", `"it's"`},
		{`it's "quoted"`, `concat('it', "'", 's "quoted"')`},
	}

	for _, tt := range tests {
		if got := xpathLiteral(tt.in); got != tt.want {
			t.Errorf("xpathLiteral(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestTextXPathNormalizesWhitespace(t *testing.T) {
	got := textXPath("  Calcular \n por: ")
	if !strings.Contains(got, ", 'calcular por:')") {
		t.Errorf("textXPath() = %s, want folded and normalized needle", got)
	}
	if !strings.HasPrefix(got, "//body//*[not(self::script or self::style)][contains(translate(normalize-space(.), ") {
		t.Errorf("textXPath() = %s", got)
	}
	if !strings.HasSuffix(got, ")])]") {
		t.Errorf("textXPath() = %s, want innermost-element guard", got)
	}
}

func TestFoldText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Porções / Unidades", "porções / unidades"},
		{"MEUS ALIMENTOS", "meus alimentos"},
		{"ÇÃO", "ção"},
		{"Ωmega", "Ωmega"},
	}
	for _, tt := range tests {
		if got := foldText(tt.in); got != tt.want {
			t.Errorf("foldText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if len([]rune(upperLetters)) != len([]rune(lowerLetters)) {
		t.Fatal("fold tables differ in length")
	}
}

func TestNewDriver(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", DriverRod, false},
		{"rod", DriverRod, false},
		{"playwright", DriverPlaywright, false},
		{"selenium", "", true},
	}

	for _, tt := range tests {
		d, err := NewDriver(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewDriver(%q) expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewDriver(%q) error = %v", tt.name, err)
		}
		if d.Name() != tt.want {
			t.Errorf("NewDriver(%q).Name() = %s, want %s", tt.name, d.Name(), tt.want)
		}
	}
}
