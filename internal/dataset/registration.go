package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrRegistration is matched by every *RegistrationError.
var ErrRegistration = errors.New("registration error")

// RegistrationError reports an upload that could not be turned into a table.
type RegistrationError struct {
	FileName string
	Message  string
	Err      error
}

func (e *RegistrationError) Error() string {
	if e.FileName == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.FileName, e.Message)
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrRegistration.
func (e *RegistrationError) Is(target error) bool {
	return target == ErrRegistration
}

// Registration binds a dataset to the table name it is queried under.
// The pair is replaced as a unit.
type Registration struct {
	TableName string   `json:"table_name"`
	FileName  string   `json:"file_name"`
	Dataset   *Dataset `json:"-"`
}

// TableName derives the queryable table name from an uploaded file name:
// the base name up to the first dot, whitespace replaced by underscores,
// lowercased. Reserved words and other characters are left as they are.
func TableName(fileName string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, base)
	name = strings.ToLower(name)
	if name == "" {
		return "", &RegistrationError{FileName: fileName, Message: "file name does not yield a table name"}
	}
	return name, nil
}

// Register pairs ds with the table name derived from fileName.
func Register(fileName string, ds *Dataset) (*Registration, error) {
	if ds == nil {
		return nil, &RegistrationError{FileName: fileName, Message: "no dataset"}
	}
	name, err := TableName(fileName)
	if err != nil {
		return nil, err
	}
	return &Registration{
		TableName: name,
		FileName:  filepath.Base(fileName),
		Dataset:   ds,
	}, nil
}
