// Package display renders backup results and statistics for the terminal.
package display

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"muwi-backup/internal/backup"
	"muwi-backup/internal/mirror"
)

// Printer writes human or machine readable output.
type Printer struct {
	config  *Config
	colors  colorizer
	theme   ColorTheme
	unicode bool
}

// NewPrinter creates a Printer; a nil config uses DefaultConfig.
func NewPrinter(config *Config) *Printer {
	if config == nil {
		config = DefaultConfig()
	}
	config.SetDefaults()
	return &Printer{
		config:  config,
		colors:  newColorizer(config.ColorEnabled && !config.QuietMode),
		theme:   ThemeByName(config.Theme),
		unicode: config.UseIcons && detectUnicodeSupport(),
	}
}

// SetOutput redirects output
func (p *Printer) SetOutput(w io.Writer) {
	p.config.Writer = w
}

// Format returns the configured output format
func (p *Printer) Format() OutputFormat {
	return OutputFormat(p.config.OutputFormat)
}

// Structured reports whether output is JSON or YAML rather than text
func (p *Printer) Structured() bool {
	return p.Format() == FormatJSON || p.Format() == FormatYAML
}

// Header prints a section title
func (p *Printer) Header(title string) {
	if p.config.QuietMode || p.Structured() {
		return
	}
	fmt.Fprintln(p.config.Writer, p.colors.sprint(p.theme.Primary, title))
}

func (p *Printer) Success(message string) { p.status("success", p.theme.Success, message, false) }
func (p *Printer) Warning(message string) { p.status("warning", p.theme.Warning, message, false) }
func (p *Printer) Info(message string)    { p.status("info", p.theme.Info, message, false) }

// Error is printed even in quiet mode
func (p *Printer) Error(message string) { p.status("error", p.theme.Error, message, true) }

func (p *Printer) status(icon string, clr Color, message string, always bool) {
	if (p.config.QuietMode && !always) || p.Structured() {
		return
	}
	prefix := ""
	if p.config.UseIcons {
		prefix = renderIcon(icon, p.unicode) + " "
	}
	fmt.Fprintln(p.config.Writer, p.colors.sprint(clr, prefix+message))
}

type statsView struct {
	Tables        []backup.TableStat `json:"tables" yaml:"tables"`
	TotalRecords  int                `json:"totalRecords" yaml:"total_records"`
	EstimatedSize string             `json:"estimatedSize" yaml:"estimated_size"`
}

// Stats prints the non-empty collections with their counts and the size estimate.
func (p *Printer) Stats(stats *backup.BackupStats) error {
	tables := stats.NonEmpty()
	if tables == nil {
		tables = []backup.TableStat{}
	}
	if p.Structured() {
		return p.Emit(statsView{Tables: tables, TotalRecords: stats.TotalRecords, EstimatedSize: stats.EstimatedSize})
	}

	if len(tables) == 0 {
		p.Info("The record store is empty")
		return nil
	}

	t := NewTable("Collection", "Records")
	t.AlignRight(1)
	for _, table := range tables {
		t.AddRow(table.Name, strconv.Itoa(table.Count))
	}
	t.SetFooter("Total", strconv.Itoa(stats.TotalRecords))
	t.RenderTo(p.config.Writer)
	fmt.Fprintf(p.config.Writer, "Estimated backup size: %s\n", stats.EstimatedSize)
	return nil
}

// BackupResult prints the outcome of a save.
func (p *Printer) BackupResult(result backup.BackupResult) error {
	if p.Structured() {
		return p.Emit(result)
	}
	if !result.Success {
		p.Error(result.Error)
		return nil
	}
	p.Success(fmt.Sprintf("Backup saved to %s (%d records)", result.FilePath, result.RecordCount))
	return nil
}

// RestoreResult prints the outcome of a restore.
func (p *Printer) RestoreResult(result backup.RestoreResult) error {
	if p.Structured() {
		return p.Emit(result)
	}
	if !result.Success {
		p.Error(result.Error)
		return nil
	}
	p.Success(fmt.Sprintf("Restored %d records across %d collections", result.RecordsRestored, result.TablesRestored))
	return nil
}

type envelopeView struct {
	Valid        bool   `json:"valid" yaml:"valid"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
	Version      string `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	AppVersion   string `json:"appVersion,omitempty" yaml:"app_version,omitempty"`
	TableCount   int    `json:"tableCount,omitempty" yaml:"table_count,omitempty"`
	TotalRecords int    `json:"totalRecords,omitempty" yaml:"total_records,omitempty"`
}

// Validation prints the result of checking a snapshot file.
func (p *Printer) Validation(envelope *backup.Envelope, err error) error {
	view := envelopeView{Valid: err == nil}
	if err != nil {
		view.Error = err.Error()
	} else {
		view.Version = envelope.Metadata.Version
		view.CreatedAt = envelope.Metadata.CreatedAt
		view.AppVersion = envelope.Metadata.AppVersion
		view.TableCount = envelope.Metadata.TableCount
		view.TotalRecords = envelope.Metadata.TotalRecords
	}
	if p.Structured() {
		return p.Emit(view)
	}

	if err != nil {
		p.Error(view.Error)
		return nil
	}
	p.Success("Backup file is valid")
	t := NewTable("Field", "Value")
	t.AddRow("Format version", view.Version)
	t.AddRow("Created", view.CreatedAt)
	t.AddRow("App version", view.AppVersion)
	t.AddRow("Collections", strconv.Itoa(view.TableCount))
	t.AddRow("Records", strconv.Itoa(view.TotalRecords))
	t.RenderTo(p.config.Writer)
	return nil
}

// Schedule prints the automatic backup settings.
func (p *Printer) Schedule(config backup.AutoBackupConfig) error {
	if p.Structured() {
		return p.Emit(config)
	}

	lastBackup := config.LastBackup
	if lastBackup == "" {
		lastBackup = "never"
	}
	t := NewTable("Setting", "Value")
	t.AddRow("Enabled", strconv.FormatBool(config.Enabled))
	t.AddRow("Frequency", fmt.Sprintf("%s (every %s)", config.Frequency, backup.IntervalFor(config.Frequency)))
	t.AddRow("Location", config.Location)
	t.AddRow("Max backups", strconv.Itoa(config.MaxBackups))
	t.AddRow("Last backup", lastBackup)
	t.RenderTo(p.config.Writer)
	return nil
}

// MirrorObjects lists mirrored copies, newest first.
func (p *Printer) MirrorObjects(destination string, objects []mirror.Object, now time.Time) error {
	if p.Structured() {
		if objects == nil {
			objects = []mirror.Object{}
		}
		return p.Emit(objects)
	}

	p.Header("Mirror: " + destination)
	if len(objects) == 0 {
		p.Info("No mirrored copies")
		return nil
	}
	t := NewTable("Name", "Size", "Age")
	t.AlignRight(1)
	for _, obj := range objects {
		t.AddRow(obj.Name, backup.FormatSize(obj.Size), obj.Age(now).Truncate(time.Second).String())
	}
	t.RenderTo(p.config.Writer)
	return nil
}

// Emit writes v in the configured structured format
func (p *Printer) Emit(v interface{}) error {
	var data []byte
	var err error
	if p.Format() == FormatYAML {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = p.config.Writer.Write(data)
	return err
}
