package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/iudanet/boardkeeper/internal/codec"
	"github.com/iudanet/boardkeeper/internal/models"
)

// RunExport сериализует перечисленные узлы (или весь workspace) в файл
func (c *Cli) RunExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("o", "boardkeeper-export.json", "Output file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := codec.Export(c.store.Snapshot(), fs.Args(), time.Now())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if err := os.WriteFile(*output, data, 0o600); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	c.io.Printf("Exported to %s (%d bytes)\n", *output, len(data))
	return nil
}

// RunImport валидирует и вставляет содержимое файла обмена
func (c *Cli) RunImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	x := fs.Float64("x", 0, "X coordinate of the insertion center")
	y := fs.Float64("y", 0, "Y coordinate of the insertion center")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("missing file. Usage: boardkeeper import [-x X -y Y] <file>")
	}

	data, err := os.ReadFile(rest[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	result, err := codec.Import(data, models.Point{X: *x, Y: *y})
	if err != nil {
		return err
	}

	if err := c.store.ImportEntities(result.Nodes, result.Connections); err != nil {
		return fmt.Errorf("failed to insert imported entities: %w", err)
	}

	c.io.Printf("Imported %d node(s) and %d connection(s)\n",
		len(result.Nodes), len(result.Connections))
	for _, dropped := range result.Dropped {
		c.io.Printf("Dropped connection %s: endpoint outside the imported set\n", dropped)
	}

	return nil
}
