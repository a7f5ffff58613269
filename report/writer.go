package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gruntwork-io/actiontree/internal/errors"
	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// Format is the file format of a written report.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// JSONAction represents an action status in JSON format.
type JSONAction struct {
	// Pending is the time the run of the action was initialized.
	Pending *time.Time `json:"Pending,omitempty"`
	// Ready is the time every dependency of the action was done.
	Ready *time.Time `json:"Ready,omitempty"`
	// Started is the time the executor of the action began to run.
	Started *time.Time `json:"Started,omitempty"`
	// Ended is the time the action reached its terminal status.
	Ended *time.Time `json:"Ended,omitempty"`
	// ID is the unique identifier of the action.
	ID string `json:"ID" jsonschema:"required"`
	// Label is the label of the action.
	Label string `json:"Label"`
	// Status is the final status of the action.
	Status string `json:"Status" jsonschema:"required,enum=pending,enum=ready,enum=running,enum=successful,enum=failed,enum=canceled"`
	// Error is the error message of a failed action.
	Error string `json:"Error,omitempty"`
	// Output is the captured output of the action.
	Output string `json:"Output,omitempty"`
}

// JSONActions is a slice of JSONAction entries with helper methods.
type JSONActions []JSONAction

// ParseJSONActions parses a JSON report from a byte slice.
func ParseJSONActions(data []byte) (JSONActions, error) {
	var actions JSONActions
	if err := json.Unmarshal(data, &actions); err != nil {
		return nil, errors.Errorf("failed to parse JSON report: %w", err)
	}

	return actions, nil
}

// FindByLabel searches for an action by label.
func (actions JSONActions) FindByLabel(label string) *JSONAction {
	for i := range actions {
		if actions[i].Label == label {
			return &actions[i]
		}
	}

	return nil
}

// SchemaValidationError represents a schema validation error with details.
type SchemaValidationError struct {
	Errors []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed with %d error(s): %v", len(e.Errors), e.Errors)
}

// ValidateJSONReport validates a JSON report against the schema.
// Returns nil if valid, or a SchemaValidationError with details if invalid.
func ValidateJSONReport(data []byte) error {
	schemaBytes, err := json.Marshal(generateReportSchema())
	if err != nil {
		return errors.Errorf("failed to generate schema: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaBytes), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return errors.Errorf("failed to validate report: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, validationErr := range result.Errors() {
			errs[i] = validationErr.String()
		}

		return &SchemaValidationError{Errors: errs}
	}

	return nil
}

// WriteToFile writes the report to a file in the given format. The file is replaced atomically.
func (r *Report) WriteToFile(path string, format Format) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".actiontree-report-*")
	if err != nil {
		return errors.New(err)
	}

	defer os.Remove(tmpFile.Name()) //nolint:errcheck

	switch format {
	case FormatCSV:
		err = r.WriteCSV(tmpFile)
	case FormatJSON:
		err = r.WriteJSON(tmpFile)
	default:
		_ = tmpFile.Close()
		return errors.Errorf("unsupported format: %s", format)
	}

	if err != nil {
		_ = tmpFile.Close()
		return errors.Errorf("failed to write report: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return errors.Errorf("failed to close report file: %w", err)
	}

	return errors.New(os.Rename(tmpFile.Name(), path))
}

// WriteCSV writes the report to a writer in CSV format.
func (r *Report) WriteCSV(w io.Writer) error {
	csvWriter := csv.NewWriter(w)

	err := csvWriter.Write([]string{
		"ID",
		"Label",
		"Status",
		"Pending",
		"Ready",
		"Started",
		"Ended",
		"Error",
	})
	if err != nil {
		return errors.New(err)
	}

	for _, run := range r.jsonActions() {
		errMsg := run.Error

		err := csvWriter.Write([]string{
			run.ID,
			run.Label,
			run.Status,
			formatTime(run.Pending),
			formatTime(run.Ready),
			formatTime(run.Started),
			formatTime(run.Ended),
			errMsg,
		})
		if err != nil {
			return errors.New(err)
		}
	}

	csvWriter.Flush()

	return errors.New(csvWriter.Error())
}

// WriteJSON writes the report to a writer in JSON format.
func (r *Report) WriteJSON(w io.Writer) error {
	jsonBytes, err := json.MarshalIndent(r.jsonActions(), "", "  ")
	if err != nil {
		return errors.New(err)
	}

	jsonBytes = append(jsonBytes, '\n')

	_, err = w.Write(jsonBytes)

	return errors.New(err)
}

// WriteSchema writes a JSON schema for the report to a writer.
func WriteSchema(w io.Writer) error {
	jsonBytes, err := json.MarshalIndent(generateReportSchema(), "", "  ")
	if err != nil {
		return errors.New(err)
	}

	jsonBytes = append(jsonBytes, '\n')

	_, err = w.Write(jsonBytes)

	return errors.New(err)
}

func (r *Report) jsonActions() JSONActions {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actions := make(JSONActions, 0, len(r.actions))

	for _, a := range r.actions {
		status := r.statuses[a]

		entry := JSONAction{
			ID:      a.ID().String(),
			Label:   status.Label,
			Status:  status.Status.String(),
			Pending: timePtr(status.PendingTime),
			Ready:   timePtr(status.ReadyTime),
			Started: timePtr(status.StartTime),
			Ended:   timePtr(status.EndTime()),
			Output:  string(status.Output),
		}

		if status.Err != nil {
			entry.Error = status.Err.Error()
		}

		actions = append(actions, entry)
	}

	return actions
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}

	return &t
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(time.RFC3339Nano)
}

// generateReportSchema generates the JSON schema for report validation.
func generateReportSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}

	schema := reflector.Reflect(&JSONAction{})
	schema.Description = "Schema for an action of an execution report"
	schema.Title = "Action Status Schema"

	return &jsonschema.Schema{
		Type:        "array",
		Title:       "Execution Report Schema",
		Description: "Array of action statuses",
		Items:       schema,
	}
}
