package directiveparser

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		directive string
		want      Directive
		wantErr   bool
	}{
		{
			name:      "Empty",
			directive: "",
			wantErr:   true,
		},
		{
			name:      "UnknownDirective",
			directive: "ioc:wire",
			wantErr:   true,
		},
		{
			name:      "PlainBean",
			directive: "ioc:bean",
			want:      &DirectiveBean{},
		},
		{
			name:      "SingletonBean",
			directive: "ioc:bean singleton",
			want:      &DirectiveBean{Scope: "singleton"},
		},
		{
			name:      "QualifiedAlternativeBean",
			directive: "ioc:bean dependent alternative qualifier=Fast,Cheap",
			want: &DirectiveBean{
				Scope:       "dependent",
				Alternative: true,
				Qualifiers:  []string{"Fast", "Cheap"},
			},
		},
		{
			name:      "MockBean",
			directive: "ioc:bean mock singleton",
			want:      &DirectiveBean{Scope: "singleton", Mock: true},
		},
		{
			name:      "ConflictingScopes",
			directive: "ioc:bean singleton dependent",
			wantErr:   true,
		},
		{
			name:      "ReservedQualifier",
			directive: "ioc:bean qualifier=New",
			wantErr:   true,
		},
		{
			name:      "Provider",
			directive: "ioc:provider singleton qualifier=Primary",
			want:      &DirectiveProvider{Scope: "singleton", Qualifiers: []string{"Primary"}},
		},
		{
			name:      "Constructor",
			directive: "ioc:constructor",
			want:      &DirectiveConstructor{Constructor: true},
		},
		{
			name:      "ParamNew",
			directive: "ioc:param repo new",
			want:      &DirectiveParam{Name: "repo", New: true},
		},
		{
			name:      "ParamQualified",
			directive: "ioc:param db qualifier=Primary new",
			want:      &DirectiveParam{Name: "db", New: true, Qualifiers: []string{"Primary"}},
		},
		{
			name:      "ParamWithoutName",
			directive: "ioc:param",
			wantErr:   true,
		},
		{
			name:      "Inject",
			directive: "ioc:inject qualifier=Audit",
			want:      &DirectiveInject{Qualifiers: []string{"Audit"}},
		},
		{
			name:      "ElementIdent",
			directive: "ioc:element div",
			want:      &DirectiveElement{Tag: "div"},
		},
		{
			name:      "ElementHyphenated",
			directive: "ioc:element my-widget",
			want:      &DirectiveElement{Tag: "my-widget"},
		},
		{
			name:      "ElementQuoted",
			directive: `ioc:element "x-button"`,
			want:      &DirectiveElement{Tag: "x-button"},
		},
		{
			name:      "ElementEmptyTag",
			directive: `ioc:element ""`,
			wantErr:   true,
		},
		{
			name:      "Native",
			directive: "ioc:native",
			want:      &DirectiveNative{Native: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.directive)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectiveString(t *testing.T) {
	tests := []string{
		"ioc:bean",
		"ioc:bean singleton",
		"ioc:bean dependent alternative qualifier=Fast,Cheap",
		"ioc:provider singleton mock",
		"ioc:constructor",
		"ioc:param db new qualifier=Primary",
		"ioc:inject new",
		"ioc:element div",
		"ioc:native",
	}
	for _, directive := range tests {
		t.Run(directive, func(t *testing.T) {
			parsed, err := Parse(directive)
			assert.NoError(t, err)
			assert.Equal(t, directive, parsed.String())
		})
	}
}
