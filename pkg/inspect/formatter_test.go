package inspect

import (
	"context"
	"strings"
	"testing"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

func TestFormatValue(t *testing.T) {
	f := NewFormatter()
	uri := model.ResourceURI(1, 0, 0)

	tests := []struct {
		name  string
		value model.Value
		unit  string
		want  string
	}{
		{"string", model.NewString(uri, "Cel"), "", `"Cel"`},
		{"float", model.NewFloat(uri, 21.456), "Cel", "21.46 Cel"},
		{"integer", model.NewInteger(uri, 42), "%", "42 %"},
		{"bool", model.NewBool(uri, true), "", "true"},
		{"opaque", model.NewOpaque(uri, []byte{0xbe, 0xef}), "", "0xbeef"},
		{"time", model.NewTime(uri, 0), "", "0 (1970-01-01T00:00:00Z)"},
		{"undefined", model.NewUndefined(uri), "", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.FormatValue(tt.value, tt.unit); got != tt.want {
				t.Errorf("FormatValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIndent(t *testing.T) {
	f := &Formatter{}
	if got := f.Indent(2, "x"); got != "    x" {
		t.Errorf("Indent() = %q", got)
	}
	f.IndentWidth = 1
	if got := f.Indent(3, "x"); got != "   x" {
		t.Errorf("Indent() = %q", got)
	}
}

func TestFormatTree(t *testing.T) {
	objs := testInspector(t).InspectCatalog(context.Background())
	out := NewFormatter().FormatTree(objs)

	for _, want := range []string{
		"Device [/3] (single, v1.1)",
		"Temperature [/3303] (multiple, v1.0)",
		"  Instance 0",
		"    [5700] Sensor Value: 21.50 (float, R)",
		"    [5701] Sensor Units: \"Cel\" (string, RW)",
		"    [5605] Reset Min and Max Measured Values: - (undefined, E)",
		"    [11] Error Code: [0=0] (integer, R)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("tree lacks %q:\n%s", want, out)
		}
	}

	plain := &Formatter{}
	out = plain.FormatTree(objs)
	if strings.Contains(out, "[5700]") || strings.Contains(out, "(float") {
		t.Errorf("ids or metadata shown without flags:\n%s", out)
	}
	if got := plain.FormatTree(nil); got != "(no objects)\n" {
		t.Errorf("empty tree = %q", got)
	}
}

func TestFormatValues(t *testing.T) {
	f := NewFormatter()
	out := f.FormatValues([]model.Value{
		model.NewFloat(model.ResourceURI(3303, 0, 5700), 5),
		model.NewString(model.ResourceURI(3303, 0, 5701), "Cel"),
	})
	want := "/3303/0/5700 = 5.00\n/3303/0/5701 = \"Cel\"\n"
	if out != want {
		t.Errorf("FormatValues() = %q, want %q", out, want)
	}
	if got := f.FormatValues(nil); got != "(no values)\n" {
		t.Errorf("empty = %q", got)
	}
}
