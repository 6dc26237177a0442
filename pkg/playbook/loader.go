package playbook

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/qlikcloud/pkg/resources"
)

//go:embed schema.cue
var schemaSource string

// Loader parses and validates playbooks. It is safe for concurrent use.
type Loader struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewLoader compiles the playbook schema.
func NewLoader() (*Loader, error) {
	ctx := cuecontext.New()
	val := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile playbook schema: %w", err)
	}
	return &Loader{
		ctx:    ctx,
		schema: val.LookupPath(cue.ParsePath("#Playbook")),
	}, nil
}

// Load reads and validates a playbook file.
func (l *Loader) Load(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook: %w", err)
	}
	return l.Parse(path, data)
}

// Parse validates playbook content. Validation problems are returned as
// ValidationErrors.
func (l *Loader) Parse(filename string, data []byte) (*Playbook, error) {
	if errs := l.validateSchema(filename, data); len(errs) > 0 {
		return nil, errs
	}

	var plays []Play
	if err := yaml.Unmarshal(data, &plays); err != nil {
		return nil, ValidationErrors{{File: filename, Message: err.Error(), Severity: "error"}}
	}

	var errs ValidationErrors
	for i := range plays {
		for j := range plays[i].Tasks {
			task := &plays[i].Tasks[j]
			task.Module = normalizeModule(task.Module)
			if _, ok := resources.Lookup(task.Module); !ok {
				errs = append(errs, ValidationError{
					File:     filename,
					Path:     fmt.Sprintf("%d.tasks.%d.module", i, j),
					Message:  fmt.Sprintf("unknown module %q", task.Module),
					Severity: "error",
				})
			}
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return &Playbook{Path: filename, Plays: plays}, nil
}

// validateSchema unifies the document with the playbook schema.
func (l *Loader) validateSchema(filename string, data []byte) ValidationErrors {
	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return convertCUEErrors(filename, err)
	}
	doc := l.ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return convertCUEErrors(filename, err)
	}

	unified := l.schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(filename, err)
	}
	return nil
}

// convertCUEErrors converts CUE errors to ValidationErrors, preferring
// positions inside the playbook over positions in the schema.
func convertCUEErrors(filename string, err error) ValidationErrors {
	var out ValidationErrors

	for _, e := range errors.Errors(err) {
		format, args := e.Msg()
		ve := ValidationError{
			File:     filename,
			Path:     strings.Join(e.Path(), "."),
			Message:  fmt.Sprintf(format, args...),
			Severity: "error",
		}
		for _, pos := range errors.Positions(e) {
			if pos.Filename() == filename {
				ve.Line = pos.Line()
				ve.Column = pos.Column()
				break
			}
		}
		out = append(out, ve)
	}

	return out
}
