package main

import (
	"context"
	"fmt"
	"go/format"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/shrek82/tabula/core"
	"github.com/shrek82/tabula/types"
)

type genOptions struct {
	pkg       string
	outDir    string
	overwrite bool
	pk        string
}

// modelTemplate renders one entity per table.
const modelTemplate = `package {{.Package}}
{{if .Imports}}
import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)
{{end}}
// {{.StructName}} maps table {{.RawTableName}}.
type {{.StructName}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} ` + "`" + `tabula:"{{.Tag}}"` + "`" + `
{{- end}}
}

func ({{.StructName}}) TableName() string {
	return "{{.RawTableName}}"
}
`

// genField is one struct field of a generated entity.
type genField struct {
	Name string
	Type string
	Tag  string
}

type modelData struct {
	Package      string
	StructName   string
	RawTableName string
	Imports      []string
	Fields       []genField
}

var modelTmpl = template.Must(template.New("model").Parse(modelTemplate))

func newGenCmd(opts *rootOptions) *cobra.Command {
	g := &genOptions{}
	cmd := &cobra.Command{
		Use:   "gen [TABLE...]",
		Short: "Generate entity structs from live tables",
		Long: `Generate one Go file per table with a tabula-tagged struct.
Without arguments every base table is generated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()

			tables := args
			if len(tables) == 0 {
				if tables, err = db.Schema().Tables(cmd.Context()); err != nil {
					return err
				}
			}
			if err := os.MkdirAll(g.outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			for _, table := range tables {
				path, err := g.generateFile(cmd.Context(), db, table)
				if err != nil {
					return fmt.Errorf("generate %s: %w", table, err)
				}
				if path != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", table, path)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&g.pkg, "pkg", "models", "package name of the generated code")
	cmd.Flags().StringVar(&g.outDir, "out", "./models", "output directory")
	cmd.Flags().BoolVar(&g.overwrite, "overwrite", false, "replace existing files")
	cmd.Flags().StringVar(&g.pk, "pk", "id", "column treated as the primary key")
	return cmd
}

// generateFile writes table's entity and returns the file written, or ""
// when an existing file was kept.
func (g *genOptions) generateFile(ctx context.Context, db *core.DB, table string) (string, error) {
	fileName := filepath.Join(g.outDir, strings.ToLower(table)+".go")
	if _, err := os.Stat(fileName); err == nil && !g.overwrite {
		db.Logger().Warn("file %s already exists, skipping (use --overwrite)", fileName)
		return "", nil
	}

	cols := db.Schema().OrderedColumns(ctx, table)
	if len(cols) == 0 {
		return "", fmt.Errorf("table %s has no readable columns", table)
	}

	f, err := os.Create(fileName)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := renderModel(f, g.pkg, table, g.pk, cols); err != nil {
		return "", err
	}
	return fileName, nil
}

func renderModel(w io.Writer, pkg, table, pk string, cols []core.LiveColumn) error {
	data := modelData{
		Package:      pkg,
		StructName:   snakeToCamel(table),
		RawTableName: table,
	}
	imports := map[string]bool{}
	for _, c := range cols {
		isPK := strings.EqualFold(c.Name, pk)
		goType, imp := mapType(c, isPK)
		if imp != "" && !imports[imp] {
			imports[imp] = true
			data.Imports = append(data.Imports, imp)
		}
		data.Fields = append(data.Fields, genField{
			Name: snakeToCamel(c.Name),
			Type: goType,
			Tag:  generateTag(c, isPK),
		})
	}

	var sb strings.Builder
	if err := modelTmpl.Execute(&sb, data); err != nil {
		return err
	}
	src, err := format.Source([]byte(sb.String()))
	if err != nil {
		return fmt.Errorf("format generated code: %w", err)
	}
	_, err = w.Write(src)
	return err
}

// mapType picks the Go type for a live column and the import it needs.
// Nullable scalars become pointers.
func mapType(c core.LiveColumn, pk bool) (string, string) {
	var goType, imp string
	switch c.SQLType {
	case types.SmallInt:
		goType = "int16"
	case types.Integer:
		goType = "int32"
	case types.BigInt:
		goType = "int64"
	case types.Decimal:
		goType, imp = "decimal.Decimal", "github.com/shopspring/decimal"
	case types.Real:
		goType = "float32"
	case types.Double:
		goType = "float64"
	case types.Char, types.Varchar, types.Text:
		goType = "string"
		if strings.EqualFold(c.DatabaseType, "UUID") {
			goType, imp = "uuid.UUID", "github.com/google/uuid"
		}
	case types.Boolean:
		goType = "bool"
	case types.Date, types.Time, types.Timestamp:
		goType, imp = "time.Time", "time"
	case types.Binary, types.Blob:
		return "[]byte", ""
	default:
		goType = "string"
	}
	if c.Nullable && !pk && imp == "" {
		goType = "*" + goType
	}
	return goType, imp
}

// generateTag renders the tabula tag for a live column.
func generateTag(c core.LiveColumn, pk bool) string {
	tags := []string{"column:" + c.Name}
	if pk {
		tags = append(tags, "pk")
	} else if !c.Nullable {
		tags = append(tags, "notnull")
	}
	switch {
	case c.SQLType == types.Decimal && c.Size > 0:
		tags = append(tags, fmt.Sprintf("size:%d", c.Size), fmt.Sprintf("precision:%d", c.Precision))
	case c.SQLType.Sized() && c.Size > 0:
		tags = append(tags, fmt.Sprintf("size:%d", c.Size))
	case c.SQLType == types.Text, c.SQLType == types.Date, c.SQLType == types.Time:
		tags = append(tags, "type:"+c.SQLType.String())
	}
	return strings.Join(tags, ";")
}

// snakeToCamel converts order_item_id to OrderItemID.
func snakeToCamel(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, p := range parts {
		if strings.EqualFold(p, "id") {
			parts[i] = "ID"
			continue
		}
		if p == strings.ToUpper(p) {
			p = strings.ToLower(p)
		}
		runes := []rune(p)
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, "")
}
