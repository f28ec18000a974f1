package model

import (
	"fmt"
	"strconv"
	"strings"
)

// TagKey is the struct tag key read by metadata resolution.
const TagKey = "tabula"

// Tag represents parsed tabula tags
type Tag struct {
	Ignore      bool
	Column      string
	PrimaryKey  bool
	AutoInc     bool
	Size        int
	Precision   int
	Unique      bool
	NotNull     bool
	ReadOnly    bool
	Type        string
	Index       []string
	UniqueIndex []string
	Generated   string
}

// ParseTag parses the "tabula" tag string. Unknown keys are ignored;
// size and precision must be non-negative integers.
func ParseTag(tagStr string) (*Tag, error) {
	tag := &Tag{}
	tagStr = strings.TrimSpace(tagStr)
	if tagStr == "" {
		return tag, nil
	}
	if tagStr == "-" {
		tag.Ignore = true
		return tag, nil
	}

	// Support space, semicolon, comma as separators (but keep comma in parens)
	var sb strings.Builder
	depth := 0
	for _, r := range tagStr {
		switch r {
		case '(':
			depth++
			sb.WriteRune(r)
		case ')':
			if depth > 0 {
				depth--
			}
			sb.WriteRune(r)
		case ';', ',':
			if depth > 0 {
				sb.WriteRune(r)
			} else {
				sb.WriteRune(' ')
			}
		case ' ', '\t':
			if depth > 0 {
				continue
			}
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}

	for _, part := range strings.Fields(sb.String()) {
		kv := strings.SplitN(part, ":", 2)
		key := strings.ToLower(kv[0])
		var val string
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}

		switch key {
		case "-":
			tag.Ignore = true
		case "column":
			tag.Column = val
		case "pk":
			tag.PrimaryKey = true
		case "auto":
			tag.AutoInc = true
		case "unique":
			tag.Unique = true
		case "notnull":
			tag.NotNull = true
		case "readonly":
			tag.ReadOnly = true
		case "size":
			n, err := tagInt(key, val)
			if err != nil {
				return nil, err
			}
			tag.Size = n
		case "precision":
			n, err := tagInt(key, val)
			if err != nil {
				return nil, err
			}
			tag.Precision = n
		case "type":
			tag.Type = val
		case "index":
			tag.Index = append(tag.Index, val)
		case "unique_index":
			tag.UniqueIndex = append(tag.UniqueIndex, val)
		case "generated":
			tag.Generated = val
		}
	}
	return tag, nil
}

func tagInt(key, val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s:%q must be a non-negative integer", key, val)
	}
	return n, nil
}
