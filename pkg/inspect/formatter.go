package inspect

import (
	"fmt"
	"strings"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/model"
)

// Formatter formats inspection output.
type Formatter struct {
	// ShowMetadata includes type, operations and unit information
	ShowMetadata bool

	// ShowIDs includes numeric IDs alongside names
	ShowIDs bool

	// IndentWidth is the number of spaces per indent level
	IndentWidth int
}

// NewFormatter creates a new Formatter with default settings.
func NewFormatter() *Formatter {
	return &Formatter{
		ShowMetadata: true,
		ShowIDs:      true,
		IndentWidth:  2,
	}
}

// Indent returns the content with indentation.
func (f *Formatter) Indent(depth int, content string) string {
	width := f.IndentWidth
	if width == 0 {
		width = 2
	}
	return strings.Repeat(" ", depth*width) + content
}

// FormatValue formats a value for display with an optional unit.
func (f *Formatter) FormatValue(v model.Value, unit string) string {
	if v.Data == nil {
		return "null"
	}

	var s string
	switch v.Type {
	case model.TypeString, model.TypeCoreLink:
		text, _ := v.Text()
		return fmt.Sprintf("%q", text)
	case model.TypeOpaque:
		b, _ := v.Bytes()
		return fmt.Sprintf("0x%x", b)
	case model.TypeBoolean:
		b, _ := v.Bool()
		return fmt.Sprintf("%t", b)
	case model.TypeFloat:
		x, _ := v.Float64()
		s = fmt.Sprintf("%.2f", x)
	case model.TypeTime:
		n, _ := v.Int64()
		return FormatTime(n)
	default:
		text, err := model.FormatText(v)
		if err != nil {
			text = fmt.Sprintf("%v", v.Data)
		}
		s = text
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

// FormatTime formats a Unix time in UTC.
func FormatTime(unix int64) string {
	return fmt.Sprintf("%d (%s)", unix, time.Unix(unix, 0).UTC().Format(time.RFC3339))
}

// FormatObjectHeader formats the header line of an Object.
func (f *Formatter) FormatObjectHeader(obj ObjectInfo) string {
	s := fmt.Sprintf("%s [/%d]", obj.Name, obj.ID)
	if f.ShowMetadata {
		s += fmt.Sprintf(" (%s, v%s)", obj.Kind, obj.Version)
	}
	return s
}

// FormatTree formats Objects with their Instances and Resources.
func (f *Formatter) FormatTree(objects []ObjectInfo) string {
	if len(objects) == 0 {
		return "(no objects)\n"
	}
	var sb strings.Builder
	for _, obj := range objects {
		sb.WriteString(f.FormatObjectHeader(obj))
		sb.WriteString("\n")
		if len(obj.Instances) == 0 {
			sb.WriteString(f.Indent(1, "(no instances)\n"))
		}
		for _, inst := range obj.Instances {
			sb.WriteString(f.Indent(1, fmt.Sprintf("Instance %d\n", inst.ID)))
			sb.WriteString(f.FormatResources(inst.Resources, 2))
		}
	}
	return sb.String()
}

// FormatResources formats the Resources of one Instance at depth.
func (f *Formatter) FormatResources(resources []ResourceInfo, depth int) string {
	if len(resources) == 0 {
		return f.Indent(depth, "(no resources)\n")
	}
	var sb strings.Builder
	for _, r := range resources {
		label := r.Name
		if f.ShowIDs {
			label = fmt.Sprintf("[%d] %s", r.ID, r.Name)
		}
		line := label + ": " + f.resourceValue(r)
		if f.ShowMetadata {
			line += fmt.Sprintf(" (%s, %s)", r.Type, r.Operations)
		}
		sb.WriteString(f.Indent(depth, line))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *Formatter) resourceValue(r ResourceInfo) string {
	switch {
	case r.Err != nil:
		return "<error: " + r.Err.Error() + ">"
	case !r.Operations.CanRead():
		return "-"
	case r.Multiple:
		parts := make([]string, len(r.Values))
		for i, v := range r.Values {
			parts[i] = fmt.Sprintf("%d=%s", v.URI.ResourceInstanceID, f.FormatValue(v, r.Unit))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case len(r.Values) == 0:
		return "null"
	default:
		return f.FormatValue(r.Values[0], r.Unit)
	}
}

// FormatValues formats a flat list of values, one per line.
func (f *Formatter) FormatValues(values []model.Value) string {
	if len(values) == 0 {
		return "(no values)\n"
	}
	var sb strings.Builder
	for _, v := range values {
		sb.WriteString(v.URI.String())
		sb.WriteString(" = ")
		sb.WriteString(f.FormatValue(v, ""))
		sb.WriteString("\n")
	}
	return sb.String()
}
