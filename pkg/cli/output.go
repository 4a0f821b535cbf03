package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// Printer writes command results and status lines. Results are YAML
// unless JSON is set. In JSON mode status lines go to Err so Out stays
// machine-readable.
type Printer struct {
	Out    io.Writer
	Err    io.Writer
	JSON   bool
	Styles Styles
}

// NewPrinter returns a printer on stdout/stderr with the default theme.
func NewPrinter(jsonOutput bool) *Printer {
	return &Printer{
		Out:    os.Stdout,
		Err:    os.Stderr,
		JSON:   jsonOutput,
		Styles: NewStyles(DefaultTheme),
	}
}

// Result writes v as YAML or indented JSON.
func (p *Printer) Result(v any) error {
	if p.JSON {
		enc := json.NewEncoder(p.out())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	_, err = p.out().Write(data)
	return err
}

// Success writes a status line prefixed with a check mark.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.status(), p.Styles.Assistant.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Info writes a dimmed status line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintln(p.status(), p.Styles.Help.Render(fmt.Sprintf(format, args...)))
}

// Error writes an error line to Err.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.errOut(), p.Styles.Error.Render("error: "+fmt.Sprintf(format, args...)))
}

func (p *Printer) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func (p *Printer) errOut() io.Writer {
	if p.Err == nil {
		return os.Stderr
	}
	return p.Err
}

func (p *Printer) status() io.Writer {
	if p.JSON {
		return p.errOut()
	}
	return p.out()
}
